// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := &Bundle{
		Type:            MessageTypeObjectControl,
		Uniquifier:      []byte("client-1"),
		SessionToken:    []byte("token-1"),
		ProtocolVersion: 2,
		ClientType:      7,
		MessageID:       []byte{1, 2, 3, 4},
		RegistrationOps: []RegistrationOp{
			{ObjectID: ObjectID{Source: 1, Name: []byte("a")}, Op: RegistrationOpRegister, OpSeqno: 1},
		},
		Invalidations: []Invalidation{
			{ObjectID: ObjectID{Source: 1, Name: []byte("a")}, Version: 5, Payload: []byte("p")},
		},
		Acks: []Ack{
			{ObjectID: ObjectID{Source: 1, Name: []byte("a")}, Version: 5},
		},
		NextMessageDelayMillis: 1000,
		PollingIntervalMillis:  2000,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Type != original.Type {
		t.Errorf("Type = %v, want %v", decoded.Type, original.Type)
	}
	if !bytes.Equal(decoded.Uniquifier, original.Uniquifier) {
		t.Errorf("Uniquifier = %q, want %q", decoded.Uniquifier, original.Uniquifier)
	}
	if len(decoded.RegistrationOps) != 1 || decoded.RegistrationOps[0].OpSeqno != 1 {
		t.Errorf("RegistrationOps mismatch: %+v", decoded.RegistrationOps)
	}
	if len(decoded.Invalidations) != 1 || decoded.Invalidations[0].Version != 5 {
		t.Errorf("Invalidations mismatch: %+v", decoded.Invalidations)
	}
	if len(decoded.Acks) != 1 {
		t.Errorf("Acks mismatch: %+v", decoded.Acks)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0xfe, 0xfd})
	if err == nil {
		t.Error("Unmarshal should reject malformed input")
	}
}

func TestMessageTypeString(t *testing.T) {
	cases := map[MessageType]string{
		MessageTypeUnspecified:    "UNSPECIFIED",
		MessageTypeInitialize:     "INITIALIZE",
		MessageTypeAssignClientID: "ASSIGN_CLIENT_ID",
		MessageTypeObjectControl:  "OBJECT_CONTROL",
		MessageTypeShutdown:       "SHUTDOWN",
	}
	for messageType, want := range cases {
		if got := messageType.String(); got != want {
			t.Errorf("MessageType(%d).String() = %q, want %q", messageType, got, want)
		}
	}
}
