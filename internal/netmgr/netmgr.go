// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package netmgr decides when the client should emit an outbound
// message — driven by server-controlled heartbeat and polling
// cadence — and stamps the bookkeeping fields every outbound message
// carries regardless of what triggered it.
//
// A Manager is not safe for concurrent use; the owning orchestrator is
// expected to serialize every call under its own lock.
package netmgr

import (
	"time"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/digest"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/throttle"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/wire"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/clock"
)

// Manager is the single-writer outbound cadence machine: it tracks
// when the next heartbeat or poll is due and gates notifications to
// the registered outbound listener through a Throttle.
type Manager struct {
	clock      clock.Clock
	throttle   *throttle.Throttle
	listener   func()
	protoVer   int32
	clientType int32

	heartbeatInterval time.Duration
	pollingInterval   time.Duration

	nextHeartbeatDeadline time.Time
	nextPollDeadline      time.Time
	lastSendTime          time.Time

	messageCounter uint64
}

// New returns a Manager whose outbound notifications are rate-limited
// by limits and whose initial heartbeat/polling cadence is the given
// intervals. protocolVersion and clientType are stamped onto every
// outbound message by FinalizeOutboundMessage.
func New(clk clock.Clock, limits []throttle.Limit, heartbeatInterval, pollingInterval time.Duration, protocolVersion, clientType int32) (*Manager, error) {
	m := &Manager{
		clock:             clk,
		protoVer:          protocolVersion,
		clientType:        clientType,
		heartbeatInterval: heartbeatInterval,
		pollingInterval:   pollingInterval,
	}

	th, err := throttle.New(clk, limits, func() {
		if m.listener != nil {
			m.listener()
		}
	})
	if err != nil {
		return nil, err
	}
	m.throttle = th

	now := clk.Now()
	m.nextHeartbeatDeadline = now.Add(heartbeatInterval)
	m.nextPollDeadline = now.Add(pollingInterval)
	return m, nil
}

// RegisterOutboundListener installs the callback OutboundDataReady
// notifies, through the Throttle, when the client should drain an
// outbound message. Only one listener is supported at a time;
// registering a new one replaces the old.
func (m *Manager) RegisterOutboundListener(listener func()) {
	m.listener = listener
}

// HasDataToSend reports whether the heartbeat or polling deadline has
// passed.
func (m *Manager) HasDataToSend() bool {
	now := m.clock.Now()
	return !m.nextHeartbeatDeadline.After(now) || !m.nextPollDeadline.After(now)
}

// OutboundDataReady notifies the registered outbound listener, no more
// than once per cadence slot as enforced by the Throttle.
func (m *Manager) OutboundDataReady() {
	m.throttle.Fire()
}

// AddHeartbeat marks that the object-control message about to be sent
// counts as this cadence slot's heartbeat.
func (m *Manager) AddHeartbeat() {
	m.RecordImplicitHeartbeat()
}

// RecordImplicitHeartbeat resets the heartbeat deadline because a
// message went out for some other reason (a registration op, an ack),
// which satisfies the server's liveness requirement just as well as a
// dedicated heartbeat would.
func (m *Manager) RecordImplicitHeartbeat() {
	now := m.clock.Now()
	m.lastSendTime = now
	m.nextHeartbeatDeadline = now.Add(m.heartbeatInterval)
}

// HandleInboundMessage reads the server's cadence hints, if present,
// and reschedules the heartbeat and polling deadlines against the new
// intervals.
func (m *Manager) HandleInboundMessage(bundle *wire.Bundle) {
	now := m.clock.Now()
	if bundle.NextMessageDelayMillis > 0 {
		m.heartbeatInterval = time.Duration(bundle.NextMessageDelayMillis) * time.Millisecond
		m.nextHeartbeatDeadline = now.Add(m.heartbeatInterval)
	}
	if bundle.PollingIntervalMillis > 0 {
		m.pollingInterval = time.Duration(bundle.PollingIntervalMillis) * time.Millisecond
		m.nextPollDeadline = now.Add(m.pollingInterval)
	}
}

// FinalizeOutboundMessage stamps bundle's message id, client type, and
// protocol version, and records the send time. It does not move the
// heartbeat deadline; AddHeartbeat and RecordImplicitHeartbeat do that.
// message_id is derived deterministically from uniquifier and a
// per-client monotonic counter rather than drawn at random, which
// keeps it reproducible under a fake clock and PRNG in tests without
// weakening the server's only real requirement: uniqueness per client.
func (m *Manager) FinalizeOutboundMessage(bundle *wire.Bundle, uniquifier []byte) {
	bundle.ProtocolVersion = m.protoVer
	bundle.ClientType = m.clientType

	m.messageCounter++
	id := digest.MessageID(uniquifier, m.messageCounter)
	bundle.MessageID = id[:]

	m.lastSendTime = m.clock.Now()
}
