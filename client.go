// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/digest"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/netmgr"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/opsched"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/registration"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/session"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/smear"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/wire"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/clock"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/objectid"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/persistence"
)

// tickKey is the only operation opsched.Scheduler ever tracks for a
// Client: there is exactly one periodic tick per client.
const tickKey = "periodic-tick"

// Client is the cache-invalidation orchestrator: it owns the session,
// registration, and outbound-cadence subsystems, ties them together
// under one periodic tick, and exposes the surface an application
// embeds against.
//
// Every exported method except RegisterOutboundListener (which only
// swaps the outbound callback under its own outboundMu) acquires c.mu
// on entry and releases it before
// returning; none of them call back into the application or into
// persistence while still holding it, so a Listener or Storage
// implementation can safely call back into the client from a
// different goroutine without deadlocking. Calling an exported method
// from the same goroutine that is currently inside one of the
// client's own scheduled callbacks (periodic tick, writeback
// completion) is a programmer error; Go's sync.Mutex has no reentrant
// mode, so that mistake deadlocks rather than panics.
type Client struct {
	mu sync.Mutex

	resources       SystemResources
	config          *ClientConfig
	applicationName string
	listener        Listener

	session      *session.Manager
	registration *registration.Manager
	netmgr       *netmgr.Manager
	persistence  *persistence.Manager
	smearer      *smear.Smearer
	tick         *opsched.Scheduler[string]

	pendingAcks            []objectid.Invalidation
	awaitingSeqnoWriteback bool
	nonceCounter           uint64

	outboundMu sync.Mutex
	outboundCB func()

	stats Stats
}

// Create builds a Client from scratch or, if serializedState is
// non-empty and parses, resumes one from its persisted identity. A
// nil config falls back to DefaultConfig; zero-value fields left unset
// in resources get production defaults (a real clock, the default
// slog logger, in-memory storage, and a buffered serial executor for
// both listener delivery and persistence dispatch).
func Create(resources SystemResources, clientType int32, applicationName string, serializedState []byte, listener Listener, config *ClientConfig) (*Client, error) {
	if listener == nil {
		return nil, fmt.Errorf("ticl: listener must not be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("ticl: invalid config: %w", err)
	}
	resources = fillResourceDefaults(resources)

	c := &Client{
		resources:       resources,
		config:          config,
		applicationName: applicationName,
		listener:        listener,
		persistence:     persistence.New(resources.Storage),
		smearer:         smear.NewWithSeed(config.SmearFactor, randomSeed()),
	}

	state, malformed := loadStartupState(serializedState)
	if malformed {
		resources.Logger.Warn("ticl: discarding unparseable persisted state, starting fresh")
	}

	if state != nil {
		c.session = session.New(state.Uniquifier)
		c.registration = registration.New(c.registrationListener(), state.SequenceNumberLimit, state.SequenceNumberLimit)
	} else {
		c.session = session.New(nil)
		c.registration = registration.New(c.registrationListener(), registration.FirstSequenceNumber, config.SeqnoBlockSize)
	}

	nm, err := netmgr.New(
		lockClockCallbacks(resources.Clock, &c.mu),
		config.throttleLimits(),
		time.Duration(config.HeartbeatIntervalMillis)*time.Millisecond,
		time.Duration(config.PollingIntervalMillis)*time.Millisecond,
		config.ProtocolVersion,
		clientType,
	)
	if err != nil {
		return nil, fmt.Errorf("ticl: constructing network manager: %w", err)
	}
	c.netmgr = nm
	c.netmgr.RegisterOutboundListener(c.notifyOutboundReady)

	c.tick = opsched.New[string](resources.Clock, c.smearer)
	interval := time.Duration(config.PeriodicTaskIntervalMillis) * time.Millisecond
	if err := c.tick.Set(tickKey, interval, "periodic-tick", c.runPeriodicTick); err != nil {
		return nil, fmt.Errorf("ticl: scheduling periodic tick: %w", err)
	}
	c.tick.Schedule(tickKey)

	if state != nil {
		c.mu.Lock()
		c.issueSeqnoWriteback(state.SequenceNumberLimit + config.SeqnoBlockSize)
		c.mu.Unlock()
	}

	return c, nil
}

func fillResourceDefaults(r SystemResources) SystemResources {
	if r.Clock == nil {
		r.Clock = clock.Real()
	}
	if r.Logger == nil {
		r.Logger = defaultLogger()
	}
	if r.Storage == nil {
		r.Storage = persistence.NewMemoryStorage()
	}
	if r.Listener == nil {
		r.Listener = NewSerialExecutor(64)
	}
	if r.Persistence == nil {
		r.Persistence = NewSerialExecutor(16)
	}
	return r
}

// loadStartupState deserializes serializedState, if present. malformed
// is true only when a non-empty blob was supplied but failed its
// digest check — an empty blob is simply "no prior state", not an
// error worth a warning.
func loadStartupState(serializedState []byte) (state *TiclState, malformed bool) {
	if len(serializedState) == 0 {
		return nil, false
	}
	s, err := deserializeState(serializedState)
	if err != nil {
		return nil, true
	}
	return s, false
}

// lockClockCallbackClock wraps a Clock so that AfterFunc callbacks
// re-acquire mu before running. netmgr's internal Throttle schedules
// its own deferred retries directly against whatever clock it is
// given; without this wrapper those retries would fire on the
// clock's own goroutine and mutate netmgr's state (which, like every
// other core subsystem, assumes the orchestrator's lock is already
// held) with no synchronization at all.
type lockClockCallbackClock struct {
	clock.Clock
	mu *sync.Mutex
}

func (l lockClockCallbackClock) AfterFunc(d time.Duration, f func()) *clock.Timer {
	return l.Clock.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		f()
	})
}

func lockClockCallbacks(c clock.Clock, mu *sync.Mutex) clock.Clock {
	return lockClockCallbackClock{Clock: c, mu: mu}
}

func randomSeed() uint64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// registrationAdapter forwards registration.Manager's callback into
// the client's own listener-dispatch path.
type registrationAdapter struct{ c *Client }

func (a *registrationAdapter) RegistrationStateChanged(oid objectid.ObjectID, state objectid.ConfirmedState, reason objectid.RegistrationReason) {
	a.c.dispatchListener(func() { a.c.listener.RegistrationStateChanged(oid, state, reason) })
}

func (c *Client) registrationListener() registration.Listener {
	return &registrationAdapter{c: c}
}

// Register records that the application wants oid's invalidations.
func (c *Client) Register(oid ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registration.Register(oid)
	c.maybeNotifyOutbound()
}

// Unregister records that the application no longer wants oid's
// invalidations.
func (c *Client) Unregister(oid ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registration.Unregister(oid)
	c.maybeNotifyOutbound()
}

// PermanentShutdown moves the client into its terminal state. Pending
// registration ops and acks stay in their tables but are never sent:
// the next TakeOutboundMessage call returns the one SHUTDOWN message,
// which carries neither, and every later call reports nothing to send.
func (c *Client) PermanentShutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Shutdown()
	c.maybeNotifyOutbound()
}

// RegisterOutboundListener installs the callback the client invokes,
// through its listener executor, whenever TakeOutboundMessage has
// something worth draining. Only one callback is active at a time;
// registering a new one replaces the old.
func (c *Client) RegisterOutboundListener(cb func()) {
	c.outboundMu.Lock()
	defer c.outboundMu.Unlock()
	c.outboundCB = cb
}

// HandleInboundMessage decodes and dispatches one inbound framed
// message. A message that arrives while a sequence-number writeback
// is in flight, or that fails to parse, is silently dropped — both
// are expected, recoverable conditions, not reported to the caller.
func (c *Client) HandleInboundMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.MessagesReceived++

	if c.awaitingSeqnoWriteback {
		return nil
	}

	bundle, err := wire.Unmarshal(data)
	if err != nil {
		c.stats.MessagesMalformed++
		return nil
	}

	c.netmgr.HandleInboundMessage(bundle)

	switch c.session.ProcessMessage(bundle) {
	case session.AcquireSession:
		c.onSessionAcquired()
	case session.LoseSession:
		c.onSessionLost()
	case session.LoseClientID:
		c.forgetClientID()
	case session.ProcessObjectControl:
		c.processObjectControl(bundle)
	case session.IgnoreMessage:
	}

	c.maybeNotifyOutbound()
	return nil
}

// TakeOutboundMessage drains and encodes the next outbound message, if
// there is anything to send. The bool result is false when there is
// nothing worth sending right now.
func (c *Client) TakeOutboundMessage() ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.awaitingSeqnoWriteback {
		return nil, false, nil
	}
	if !c.hasOutboundWork() {
		return nil, false, nil
	}

	var bundle wire.Bundle
	c.session.AddSessionAction(&bundle, c.newNonce())

	if bundle.Type == wire.MessageTypeUnspecified {
		// Shutdown with its one message already emitted leaves the type
		// unset on purpose: there is nothing left this client may ever
		// send again, object-control included.
		if c.session.State() == session.Shutdown {
			return nil, false, nil
		}
		bundle.Type = wire.MessageTypeObjectControl
	}

	if bundle.Type == wire.MessageTypeObjectControl {
		ops := c.registration.AddOutboundData(c.config.MaxOpsPerMessage)
		for _, op := range ops {
			bundle.RegistrationOps = append(bundle.RegistrationOps, toWireRegistrationOp(op))
		}
		c.netmgr.AddHeartbeat()

		if remaining := c.config.MaxOpsPerMessage - len(ops); remaining > 0 {
			acked := c.drainAcks(remaining)
			for _, inv := range acked {
				bundle.Acks = append(bundle.Acks, toWireAck(inv))
			}
			c.stats.AcksSent += int64(len(acked))
		}
	} else {
		c.netmgr.RecordImplicitHeartbeat()
	}

	c.netmgr.FinalizeOutboundMessage(&bundle, c.session.Uniquifier())
	c.stats.MessagesSent++

	data, err := wire.Marshal(&bundle)
	if err != nil {
		return nil, false, fmt.Errorf("ticl: encoding outbound bundle: %w", err)
	}
	return data, true, nil
}

func (c *Client) newNonce() []byte {
	c.nonceCounter++
	n := digest.Nonce([]byte(c.applicationName), c.nonceCounter)
	return n[:]
}

// drainAcks removes up to maxCount entries from the pending-ack
// queue, honoring config.AckDrainOrder: LIFO takes from the back
// (newest first, the default), FIFO takes from the front.
func (c *Client) drainAcks(maxCount int) []objectid.Invalidation {
	if maxCount <= 0 || len(c.pendingAcks) == 0 {
		return nil
	}
	n := maxCount
	if n > len(c.pendingAcks) {
		n = len(c.pendingAcks)
	}

	var drained []objectid.Invalidation
	if c.config.AckDrainOrder == AckDrainFIFO {
		drained = append(drained, c.pendingAcks[:n]...)
		c.pendingAcks = c.pendingAcks[n:]
	} else {
		start := len(c.pendingAcks) - n
		drained = append(drained, c.pendingAcks[start:]...)
		c.pendingAcks = c.pendingAcks[:start]
	}

	now := c.resources.Clock.Now().UnixMilli()
	for i := range drained {
		if len(drained[i].StampLog) > 0 {
			drained[i].StampLog = append(drained[i].StampLog, objectid.Stamp{Tag: "C", Timestamp: now})
		}
	}
	return drained
}

// runPeriodicTick is the scheduled callback behind the client's single
// recurring operation: persistence maintenance, writeback exhaustion
// checks, and deciding whether the current state is worth announcing
// to the outbound listener. Always reschedules itself, smeared, before
// returning.
func (c *Client) runPeriodicTick() {
	c.mu.Lock()
	defer func() {
		c.tick.Schedule(tickKey)
		c.mu.Unlock()
	}()

	c.persistence.DoPeriodicCheck(context.Background())

	if c.awaitingSeqnoWriteback {
		return
	}

	if c.registration.Exhausted() {
		c.forgetClientID()
		return
	}

	if c.hasOutboundWork() {
		c.netmgr.OutboundDataReady()
	}
}

// hasOutboundWork reports whether anything currently queued is worth
// announcing to the outbound listener: a session-level action, a
// registration delta, a backlogged ack, or a due heartbeat/poll.
func (c *Client) hasOutboundWork() bool {
	return c.session.HasDataToSend() ||
		c.registration.DoPeriodicRegistrationCheck() ||
		len(c.pendingAcks) > 0 ||
		c.netmgr.HasDataToSend()
}

func (c *Client) maybeNotifyOutbound() {
	if c.hasOutboundWork() {
		c.netmgr.OutboundDataReady()
	}
}

// notifyOutboundReady is netmgr's outbound-ready callback. It may run
// synchronously inside a call made while c.mu is already held (every
// caller in this file reaches netmgr through that lock), so it must
// never try to acquire c.mu itself — it only hands the application's
// callback to the listener executor, which runs it later on its own
// goroutine.
func (c *Client) notifyOutboundReady() {
	c.resources.Listener.Submit(func() {
		c.outboundMu.Lock()
		cb := c.outboundCB
		c.outboundMu.Unlock()
		if cb != nil {
			cb()
		}
	})
}

func (c *Client) dispatchListener(fn func()) {
	c.resources.Listener.Submit(fn)
}

func (c *Client) onSessionAcquired() {
	c.registration.HandleNewSession()
	c.netmgr.RecordImplicitHeartbeat()

	state := &TiclState{
		Uniquifier:          c.session.Uniquifier(),
		SessionToken:        c.session.SessionToken(),
		SequenceNumberLimit: c.registration.MaximumOpSeqnoInclusive() + 1,
	}
	c.writeStateBestEffort(state)

	c.dispatchListener(func() { c.listener.SessionStatusChanged(true) })
}

func (c *Client) onSessionLost() {
	c.registration.HandleLostSession()
	c.dispatchListener(func() { c.listener.SessionStatusChanged(false) })
}

// forgetClientID resets every core subsystem to the state of a
// never-persisted client. Called when the server repudiates the
// client id, when a writeback fails, or when the sequence-number
// counter runs past its reserved block with no writeback in flight.
func (c *Client) forgetClientID() {
	c.session.Close()
	c.session = session.New(nil)
	c.registration.Reset(registration.FirstSequenceNumber, c.config.SeqnoBlockSize)
	c.awaitingSeqnoWriteback = false
	c.stats.ClientIDsForgotten++
}

// issueSeqnoWriteback persists a state blob claiming the next block up
// to, but excluding, newLimit, and blocks all inbound/outbound traffic
// until the write completes. Must be called with c.mu held.
func (c *Client) issueSeqnoWriteback(newLimit int64) {
	c.awaitingSeqnoWriteback = true

	state := &TiclState{
		Uniquifier:          c.session.Uniquifier(),
		SessionToken:        c.session.SessionToken(),
		SequenceNumberLimit: newLimit,
	}
	blob, err := serializeState(state)
	if err != nil {
		c.resources.Logger.Error("ticl: encoding state for sequence-number writeback", "error", err)
		c.awaitingSeqnoWriteback = false
		return
	}

	c.resources.Persistence.Submit(func() {
		c.persistence.WriteState(context.Background(), blob, func(success bool) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.onWritebackComplete(success, newLimit)
		})
	})
}

func (c *Client) onWritebackComplete(success bool, newLimit int64) {
	c.awaitingSeqnoWriteback = false
	if success {
		c.registration.UpdateMaximumSeqno(newLimit)
		c.stats.SeqnoWritebacks++
	} else {
		c.stats.PersistenceFailures++
		c.forgetClientID()
	}
	c.maybeNotifyOutbound()
}

// writeStateBestEffort dispatches a write whose outcome only affects
// statistics, not control flow — used after acquiring a session, where
// a failed write just means a future restart has to re-request one,
// not that the current session is unusable.
func (c *Client) writeStateBestEffort(state *TiclState) {
	blob, err := serializeState(state)
	if err != nil {
		c.resources.Logger.Error("ticl: encoding state after session acquired", "error", err)
		return
	}
	c.resources.Persistence.Submit(func() {
		c.persistence.WriteState(context.Background(), blob, func(success bool) {
			if success {
				return
			}
			c.mu.Lock()
			c.stats.PersistenceFailures++
			c.mu.Unlock()
		})
	})
}

func (c *Client) processObjectControl(bundle *wire.Bundle) {
	if len(bundle.RegistrationStatuses) > 0 {
		statuses := make([]registration.Status, len(bundle.RegistrationStatuses))
		for i, s := range bundle.RegistrationStatuses {
			statuses[i] = fromWireRegistrationStatus(s)
		}
		c.registration.ProcessInboundMessage(statuses)
	}

	for _, wireInv := range bundle.Invalidations {
		inv := fromWireInvalidation(wireInv)
		ack := c.makeAckFunc(inv)
		if inv.ObjectID.IsAll() {
			c.dispatchListener(func() { c.listener.InvalidateAll(ack) })
		} else {
			c.dispatchListener(func() { c.listener.Invalidate(inv, ack) })
		}
		c.stats.InvalidationsDelivered++
	}
}

// makeAckFunc returns the AckFunc handed to the listener alongside one
// delivered invalidation. once guards against a listener that, against
// the documented contract, calls it more than once.
func (c *Client) makeAckFunc(inv objectid.Invalidation) AckFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.pendingAcks = append(c.pendingAcks, inv)
			c.stats.AcksQueued++
			c.maybeNotifyOutbound()
		})
	}
}
