// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package session owns the client's uniquifier and session token and
// classifies every inbound bundle into one of a fixed set of actions
// the orchestrator dispatches on.
//
// A Manager is not safe for concurrent use; the owning orchestrator is
// expected to serialize every call under its own lock.
package session

import (
	"bytes"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/wire"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/secret"
)

// State is one of the four states a client's session can be in.
type State int

const (
	// NoClientID means the client has no uniquifier and must request
	// one before anything else can happen.
	NoClientID State = iota
	// HaveClientIDNoSession means the client holds a uniquifier (fresh
	// or restored from persisted state) but has no active session and
	// must request one.
	HaveClientIDNoSession
	// HaveSession means the client can exchange object-control
	// messages with the server.
	HaveSession
	// Shutdown is terminal: the client emits one final shutdown
	// message and then produces no further session-level data.
	Shutdown
)

func (s State) String() string {
	switch s {
	case HaveClientIDNoSession:
		return "HAVE_CLIENT_ID_NO_SESSION"
	case HaveSession:
		return "HAVE_SESSION"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "NO_CLIENT_ID"
	}
}

// Action is what ProcessMessage tells the orchestrator to do with an
// inbound bundle.
type Action int

const (
	IgnoreMessage Action = iota
	AcquireSession
	LoseClientID
	LoseSession
	ProcessObjectControl
)

func (a Action) String() string {
	switch a {
	case AcquireSession:
		return "ACQUIRE_SESSION"
	case LoseClientID:
		return "LOSE_CLIENT_ID"
	case LoseSession:
		return "LOSE_SESSION"
	case ProcessObjectControl:
		return "PROCESS_OBJECT_CONTROL"
	default:
		return "IGNORE_MESSAGE"
	}
}

// Manager is the session state machine.
type Manager struct {
	state State

	uniquifier []byte

	// sessionToken is the bearer credential the server hands back on
	// session acquisition. Held in a secret.Buffer rather than a plain
	// slice so it is locked out of swap and excluded from core dumps
	// for as long as the session lives.
	sessionToken *secret.Buffer

	// pendingNonce is the nonce attached to an outstanding Initialize
	// request, cleared once a matching ASSIGN_CLIENT_ID bundle arrives.
	// A response that doesn't echo it back is ignored: it may be a
	// stale reply to an id request the client has since abandoned.
	pendingNonce []byte

	shutdownEmitted bool
}

// New returns a Manager. If uniquifier is non-empty (restored from
// persisted state), the manager starts in HaveClientIDNoSession: a
// persisted session token is never trusted without reconfirmation,
// since the server may have expired it while the client was offline.
func New(uniquifier []byte) *Manager {
	m := &Manager{}
	if len(uniquifier) > 0 {
		m.uniquifier = append([]byte(nil), uniquifier...)
		m.state = HaveClientIDNoSession
	}
	return m
}

func (m *Manager) State() State       { return m.state }
func (m *Manager) Uniquifier() []byte { return m.uniquifier }

// SessionToken returns a heap copy of the current bearer credential,
// or nil if the manager holds none. The copy is unavoidable: the
// protected buffer's contents must never be aliased past its own
// lifetime, and the wire layer needs an ordinary slice to marshal.
func (m *Manager) SessionToken() []byte { return m.sessionTokenBytes() }

func (m *Manager) sessionTokenBytes() []byte {
	if m.sessionToken == nil {
		return nil
	}
	return append([]byte(nil), m.sessionToken.Bytes()...)
}

// setSessionToken replaces the protected session-token buffer,
// closing whatever it previously held. A secret.Buffer allocation
// failure (most commonly a container's mlock rlimit) degrades to an
// unprotected in-heap copy rather than losing the token outright —
// the protection is defense in depth, not a correctness requirement.
func (m *Manager) setSessionToken(token []byte) {
	if m.sessionToken != nil {
		m.sessionToken.Close()
		m.sessionToken = nil
	}
	if len(token) == 0 {
		return
	}
	buf, err := secret.NewFromBytes(append([]byte(nil), token...))
	if err != nil {
		buf, err = secret.New(len(token))
		if err == nil {
			copy(buf.Bytes(), token)
		}
	}
	m.sessionToken = buf
}

// ProcessMessage classifies an inbound bundle against the current
// state and applies whatever state transition it implies.
func (m *Manager) ProcessMessage(bundle *wire.Bundle) Action {
	switch m.state {
	case NoClientID:
		return m.processNoClientID(bundle)
	case HaveClientIDNoSession:
		return m.processHaveClientIDNoSession(bundle)
	case HaveSession:
		return m.processHaveSession(bundle)
	default: // Shutdown
		return IgnoreMessage
	}
}

func (m *Manager) processNoClientID(bundle *wire.Bundle) Action {
	if bundle.Type != wire.MessageTypeAssignClientID {
		return IgnoreMessage
	}
	if m.pendingNonce == nil || !bytes.Equal(bundle.Nonce, m.pendingNonce) {
		return IgnoreMessage
	}

	m.uniquifier = bundle.Uniquifier
	m.setSessionToken(bundle.SessionToken)
	m.pendingNonce = nil
	m.state = HaveSession
	return AcquireSession
}

func (m *Manager) processHaveClientIDNoSession(bundle *wire.Bundle) Action {
	if !bytes.Equal(bundle.Uniquifier, m.uniquifier) {
		return IgnoreMessage
	}
	if bundle.ClientIDInvalid {
		m.reset()
		return LoseClientID
	}
	if bundle.Type == wire.MessageTypeAssignClientID {
		m.setSessionToken(bundle.SessionToken)
		m.state = HaveSession
		return AcquireSession
	}
	return IgnoreMessage
}

func (m *Manager) processHaveSession(bundle *wire.Bundle) Action {
	if !bytes.Equal(bundle.Uniquifier, m.uniquifier) || !bytes.Equal(bundle.SessionToken, m.sessionTokenBytes()) {
		return IgnoreMessage
	}
	if bundle.ClientIDInvalid {
		m.reset()
		return LoseClientID
	}
	if bundle.SessionInvalid {
		m.setSessionToken(nil)
		m.state = HaveClientIDNoSession
		return LoseSession
	}
	if bundle.Type == wire.MessageTypeObjectControl {
		return ProcessObjectControl
	}
	return IgnoreMessage
}

func (m *Manager) reset() {
	m.state = NoClientID
	m.uniquifier = nil
	m.setSessionToken(nil)
	m.pendingNonce = nil
}

// HasDataToSend reports whether the session layer itself has
// something to say on the next outbound message: an id request, a
// session request, or a not-yet-emitted shutdown.
func (m *Manager) HasDataToSend() bool {
	switch m.state {
	case NoClientID, HaveClientIDNoSession:
		return true
	case Shutdown:
		return !m.shutdownEmitted
	default:
		return false
	}
}

// AddSessionAction fills in bundle's session-level fields (and its
// message type: INITIALIZE in NO_CLIENT_ID and HAVE_CLIENT_ID_NO_SESSION,
// SHUTDOWN the first time in SHUTDOWN) for the current state.
// newNonce is used only when a fresh client id is being requested.
// When the returned bundle's Type is left unset, the registration
// layer is free to claim it as an OBJECT_CONTROL message.
func (m *Manager) AddSessionAction(bundle *wire.Bundle, newNonce []byte) {
	switch m.state {
	case NoClientID:
		bundle.Type = wire.MessageTypeInitialize
		m.pendingNonce = append([]byte(nil), newNonce...)
		bundle.Nonce = m.pendingNonce
	case HaveClientIDNoSession:
		bundle.Type = wire.MessageTypeInitialize
		bundle.Uniquifier = m.uniquifier
	case HaveSession:
		bundle.Uniquifier = m.uniquifier
		bundle.SessionToken = m.sessionTokenBytes()
	case Shutdown:
		if !m.shutdownEmitted {
			bundle.Type = wire.MessageTypeShutdown
			bundle.Uniquifier = m.uniquifier
			bundle.SessionToken = m.sessionTokenBytes()
			m.shutdownEmitted = true
		}
	}
}

// Shutdown moves the manager into the terminal Shutdown state. A
// SHUTDOWN message is emitted exactly once, the next time
// AddSessionAction runs.
func (m *Manager) Shutdown() {
	m.state = Shutdown
}

// Close releases the protected session-token buffer, if any. Callers
// that replace a Manager outright (forgetting a client id restarts
// from a fresh Manager rather than resetting the old one) must call
// this on the manager being discarded so its locked memory doesn't
// outlive it.
func (m *Manager) Close() {
	if m.sessionToken != nil {
		m.sessionToken.Close()
		m.sessionToken = nil
	}
}
