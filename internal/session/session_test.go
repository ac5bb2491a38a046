// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/wire"
)

func TestFreshClientAcquiresSession(t *testing.T) {
	m := New(nil)
	if m.State() != NoClientID {
		t.Fatalf("initial state = %v, want NoClientID", m.State())
	}
	if !m.HasDataToSend() {
		t.Fatal("a client with no id should have data to send")
	}

	var outbound wire.Bundle
	m.AddSessionAction(&outbound, []byte("nonce-1"))
	if outbound.Type != wire.MessageTypeInitialize {
		t.Fatalf("outbound.Type = %v, want Initialize", outbound.Type)
	}

	inbound := &wire.Bundle{
		Type:         wire.MessageTypeAssignClientID,
		Uniquifier:   []byte("client-1"),
		SessionToken: []byte("token-1"),
		Nonce:        []byte("nonce-1"),
	}
	if action := m.ProcessMessage(inbound); action != AcquireSession {
		t.Fatalf("ProcessMessage = %v, want AcquireSession", action)
	}
	if m.State() != HaveSession {
		t.Fatalf("state = %v, want HaveSession", m.State())
	}
}

func TestMismatchedNonceIgnored(t *testing.T) {
	m := New(nil)
	var outbound wire.Bundle
	m.AddSessionAction(&outbound, []byte("nonce-1"))

	inbound := &wire.Bundle{
		Type:         wire.MessageTypeAssignClientID,
		Uniquifier:   []byte("client-1"),
		SessionToken: []byte("token-1"),
		Nonce:        []byte("some-other-nonce"),
	}
	if action := m.ProcessMessage(inbound); action != IgnoreMessage {
		t.Fatalf("ProcessMessage = %v, want IgnoreMessage for a stale/mismatched nonce", action)
	}
	if m.State() != NoClientID {
		t.Fatalf("state = %v, want unchanged NoClientID", m.State())
	}
}

func TestRestoredClientRequestsSession(t *testing.T) {
	m := New([]byte("client-1"))
	if m.State() != HaveClientIDNoSession {
		t.Fatalf("state = %v, want HaveClientIDNoSession", m.State())
	}

	inbound := &wire.Bundle{
		Type:         wire.MessageTypeAssignClientID,
		Uniquifier:   []byte("client-1"),
		SessionToken: []byte("token-2"),
	}
	if action := m.ProcessMessage(inbound); action != AcquireSession {
		t.Fatalf("ProcessMessage = %v, want AcquireSession", action)
	}
}

func TestSessionInvalidLosesSessionNotClientID(t *testing.T) {
	m := New([]byte("client-1"))
	m.ProcessMessage(&wire.Bundle{Type: wire.MessageTypeAssignClientID, Uniquifier: []byte("client-1"), SessionToken: []byte("token-1")})

	inbound := &wire.Bundle{Uniquifier: []byte("client-1"), SessionToken: []byte("token-1"), SessionInvalid: true}
	if action := m.ProcessMessage(inbound); action != LoseSession {
		t.Fatalf("ProcessMessage = %v, want LoseSession", action)
	}
	if m.State() != HaveClientIDNoSession {
		t.Fatalf("state = %v, want HaveClientIDNoSession", m.State())
	}
}

func TestClientIDInvalidRepudiatesEverything(t *testing.T) {
	m := New([]byte("client-1"))
	m.ProcessMessage(&wire.Bundle{Type: wire.MessageTypeAssignClientID, Uniquifier: []byte("client-1"), SessionToken: []byte("token-1")})

	inbound := &wire.Bundle{Uniquifier: []byte("client-1"), SessionToken: []byte("token-1"), ClientIDInvalid: true}
	if action := m.ProcessMessage(inbound); action != LoseClientID {
		t.Fatalf("ProcessMessage = %v, want LoseClientID", action)
	}
	if m.State() != NoClientID {
		t.Fatalf("state = %v, want NoClientID", m.State())
	}
	if m.Uniquifier() != nil {
		t.Error("uniquifier should be cleared after losing the client id")
	}
}

func TestTokenMismatchIgnored(t *testing.T) {
	m := New([]byte("client-1"))
	m.ProcessMessage(&wire.Bundle{Type: wire.MessageTypeAssignClientID, Uniquifier: []byte("client-1"), SessionToken: []byte("token-1")})

	inbound := &wire.Bundle{Type: wire.MessageTypeObjectControl, Uniquifier: []byte("client-1"), SessionToken: []byte("wrong-token")}
	if action := m.ProcessMessage(inbound); action != IgnoreMessage {
		t.Fatalf("ProcessMessage = %v, want IgnoreMessage on token mismatch", action)
	}
}

func TestObjectControlProcessedWhileInSession(t *testing.T) {
	m := New([]byte("client-1"))
	m.ProcessMessage(&wire.Bundle{Type: wire.MessageTypeAssignClientID, Uniquifier: []byte("client-1"), SessionToken: []byte("token-1")})

	inbound := &wire.Bundle{Type: wire.MessageTypeObjectControl, Uniquifier: []byte("client-1"), SessionToken: []byte("token-1")}
	if action := m.ProcessMessage(inbound); action != ProcessObjectControl {
		t.Fatalf("ProcessMessage = %v, want ProcessObjectControl", action)
	}
}

func TestShutdownEmitsOnceThenGoesQuiet(t *testing.T) {
	m := New([]byte("client-1"))
	m.ProcessMessage(&wire.Bundle{Type: wire.MessageTypeAssignClientID, Uniquifier: []byte("client-1"), SessionToken: []byte("token-1")})

	m.Shutdown()
	if !m.HasDataToSend() {
		t.Fatal("a not-yet-emitted shutdown should count as data to send")
	}

	var outbound wire.Bundle
	m.AddSessionAction(&outbound, nil)
	if outbound.Type != wire.MessageTypeShutdown {
		t.Fatalf("outbound.Type = %v, want Shutdown", outbound.Type)
	}
	if m.HasDataToSend() {
		t.Error("shutdown should only be emitted once")
	}

	var second wire.Bundle
	m.AddSessionAction(&second, nil)
	if second.Type != wire.MessageTypeUnspecified {
		t.Errorf("a second AddSessionAction after shutdown emitted should not set a type, got %v", second.Type)
	}
}

func TestShutdownStateIgnoresInboundMessages(t *testing.T) {
	m := New([]byte("client-1"))
	m.Shutdown()
	if action := m.ProcessMessage(&wire.Bundle{Type: wire.MessageTypeObjectControl}); action != IgnoreMessage {
		t.Fatalf("ProcessMessage in Shutdown state = %v, want IgnoreMessage", action)
	}
}

func TestSessionTokenRoundTripsThroughProtectedBuffer(t *testing.T) {
	m := New([]byte("client-1"))
	m.ProcessMessage(&wire.Bundle{Type: wire.MessageTypeAssignClientID, Uniquifier: []byte("client-1"), SessionToken: []byte("token-1")})

	if got := string(m.SessionToken()); got != "token-1" {
		t.Fatalf("SessionToken() = %q, want %q", got, "token-1")
	}

	var outbound wire.Bundle
	m.AddSessionAction(&outbound, nil)
	if string(outbound.SessionToken) != "token-1" {
		t.Fatalf("outbound.SessionToken = %q, want %q", outbound.SessionToken, "token-1")
	}

	m.Close()
	if m.SessionToken() != nil {
		t.Fatal("SessionToken() after Close should report nil, not read released memory")
	}
}
