// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the decoded form of the opaque framed messages
// exchanged with the invalidation service, and the CBOR encoding used
// to turn a [Bundle] into the byte string the transport actually
// carries. Bit-exactness beyond "valid CBOR, same fields" is not a
// contract this package makes — the service and client only need to
// agree on the schema below, not on a specific wire grammar.
package wire

import (
	"fmt"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/codec"
)

// MessageType identifies the purpose of a Bundle.
type MessageType int

const (
	// MessageTypeUnspecified is the zero value; never sent.
	MessageTypeUnspecified MessageType = iota
	// MessageTypeInitialize requests a new client uniquifier.
	MessageTypeInitialize
	// MessageTypeAssignClientID grants a uniquifier and session token.
	MessageTypeAssignClientID
	// MessageTypeObjectControl carries registrations, invalidations,
	// acks, and heartbeat/polling hints.
	MessageTypeObjectControl
	// MessageTypeShutdown announces that the client is going away.
	MessageTypeShutdown
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeInitialize:
		return "INITIALIZE"
	case MessageTypeAssignClientID:
		return "ASSIGN_CLIENT_ID"
	case MessageTypeObjectControl:
		return "OBJECT_CONTROL"
	case MessageTypeShutdown:
		return "SHUTDOWN"
	default:
		return "UNSPECIFIED"
	}
}

// RegistrationOpType distinguishes register from unregister entries.
type RegistrationOpType int

const (
	// RegistrationOpUnspecified is the zero value; never sent.
	RegistrationOpUnspecified RegistrationOpType = iota
	// RegistrationOpRegister requests interest in an object.
	RegistrationOpRegister
	// RegistrationOpUnregister withdraws interest in an object.
	RegistrationOpUnregister
)

func (t RegistrationOpType) String() string {
	if t == RegistrationOpRegister {
		return "REGISTER"
	}
	return "UNREGISTER"
}

// ObjectID is the wire form of an object identifier: a numeric source
// paired with an opaque name.
type ObjectID struct {
	Source int32  `cbor:"source"`
	Name   []byte `cbor:"name"`
}

// RegistrationOp is one outbound register/unregister request.
type RegistrationOp struct {
	ObjectID ObjectID           `cbor:"object_id"`
	Op       RegistrationOpType `cbor:"op"`
	OpSeqno  int64              `cbor:"op_seqno"`
}

// RegistrationStatus is the server's response to a previously-sent
// RegistrationOp. Permanent distinguishes a terminal rejection (the
// client should stop retrying and surface the failure) from a
// transient one (retried on the next tick like any other pending op).
type RegistrationStatus struct {
	ObjectID  ObjectID           `cbor:"object_id"`
	Op        RegistrationOpType `cbor:"op"`
	OpSeqno   int64              `cbor:"op_seqno"`
	Success   bool               `cbor:"success"`
	Permanent bool               `cbor:"permanent,omitempty"`
}

// Stamp is one entry in an invalidation's component stamp log, used to
// trace how long an invalidation took to reach the client through
// each hop of the notification pipeline.
type Stamp struct {
	Tag             string `cbor:"tag"`
	TimestampMillis int64  `cbor:"timestamp_ms"`
}

// Invalidation is one inbound object-version change.
type Invalidation struct {
	ObjectID ObjectID `cbor:"object_id"`
	Version  int64    `cbor:"version"`
	Payload  []byte   `cbor:"payload,omitempty"`
	StampLog []Stamp  `cbor:"stamp_log,omitempty"`
}

// Ack is one outbound acknowledgement of a previously delivered
// invalidation. StampLog carries forward the originating invalidation's
// component stamp log with the client's own receipt stamp appended, so
// latency can be traced end to end rather than only up to delivery.
type Ack struct {
	ObjectID ObjectID `cbor:"object_id"`
	Version  int64    `cbor:"version"`
	StampLog []Stamp  `cbor:"stamp_log,omitempty"`
}

// Bundle is the decoded form of a single opaque framed message, in
// either direction.
type Bundle struct {
	Type            MessageType `cbor:"type"`
	Uniquifier      []byte      `cbor:"uniquifier,omitempty"`
	SessionToken    []byte      `cbor:"session_token,omitempty"`
	ProtocolVersion int32       `cbor:"protocol_version,omitempty"`
	ClientType      int32       `cbor:"client_type,omitempty"`
	MessageID       []byte      `cbor:"message_id,omitempty"`

	// Nonce accompanies an outbound MessageTypeInitialize and must be
	// echoed back on the MessageTypeAssignClientID that grants the id
	// it requested.
	Nonce []byte `cbor:"nonce,omitempty"`

	RegistrationOps      []RegistrationOp     `cbor:"registration_ops,omitempty"`
	RegistrationStatuses []RegistrationStatus `cbor:"registration_statuses,omitempty"`
	Invalidations        []Invalidation       `cbor:"invalidations,omitempty"`
	Acks                 []Ack                `cbor:"acks,omitempty"`

	// NextMessageDelayMillis and PollingIntervalMillis are
	// server-controlled cadence hints (see NetworkManager).
	NextMessageDelayMillis int64 `cbor:"next_message_delay_ms,omitempty"`
	PollingIntervalMillis  int64 `cbor:"polling_interval_ms,omitempty"`

	// SessionInvalid and ClientIDInvalid signal server-initiated
	// session or client-id repudiation (see the SessionManager state
	// machine).
	SessionInvalid  bool `cbor:"session_invalid,omitempty"`
	ClientIDInvalid bool `cbor:"client_id_invalid,omitempty"`
}

// Marshal encodes a Bundle to the byte string the transport carries.
func Marshal(bundle *Bundle) ([]byte, error) {
	data, err := codec.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("wire: marshaling bundle: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a byte string received from the transport into a
// Bundle. A decoding failure should be treated by the caller as a
// malformed message (classified IGNORE_MESSAGE), not a fatal error.
func Unmarshal(data []byte) (*Bundle, error) {
	var bundle Bundle
	if err := codec.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("wire: unmarshaling bundle: %w", err)
	}
	return &bundle, nil
}
