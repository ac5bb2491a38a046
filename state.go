// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

import (
	"bytes"
	"fmt"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/digest"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/codec"
)

// TiclState is the durable record a client needs to resume across a
// restart: its server-assigned identity and the currently reserved
// block of registration sequence numbers. It is created on first
// successful session, never edited in place, and superseded by a
// freshly written blob whenever any of its fields change.
type TiclState struct {
	Uniquifier          []byte `cbor:"uniquifier"`
	SessionToken        []byte `cbor:"session_token"`
	SequenceNumberLimit int64  `cbor:"sequence_number_limit"`
}

// stateEnvelope is the actual shape handed to persistence.Storage: the
// encoded TiclState plus a keyed digest over it, so a read-back can
// detect bit rot or a truncated write from an unreliable storage
// medium instead of either trusting corrupted bytes or merely hoping
// the CBOR decoder happens to reject them.
type stateEnvelope struct {
	Digest []byte `cbor:"digest"`
	State  []byte `cbor:"state"`
}

func serializeState(state *TiclState) ([]byte, error) {
	encoded, err := codec.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("ticl: encoding state: %w", err)
	}
	sum := digest.StateEnvelope(encoded)
	envelope := stateEnvelope{Digest: sum[:], State: encoded}

	blob, err := codec.Marshal(&envelope)
	if err != nil {
		return nil, fmt.Errorf("ticl: encoding state envelope: %w", err)
	}
	return blob, nil
}

// deserializeState decodes a persisted blob and verifies its digest.
// A decode failure or digest mismatch both return ErrMalformedState:
// from the orchestrator's perspective at startup, "parseable" means
// "the digest checks out", not merely "CBOR accepted it".
func deserializeState(blob []byte) (*TiclState, error) {
	var envelope stateEnvelope
	if err := codec.Unmarshal(blob, &envelope); err != nil {
		return nil, fmt.Errorf("ticl: decoding state envelope (%v): %w", err, ErrMalformedState)
	}

	want := digest.StateEnvelope(envelope.State)
	if !bytes.Equal(want[:], envelope.Digest) {
		return nil, fmt.Errorf("ticl: state envelope digest mismatch: %w", ErrMalformedState)
	}

	var state TiclState
	if err := codec.Unmarshal(envelope.State, &state); err != nil {
		return nil, fmt.Errorf("ticl: decoding state (%v): %w", err, ErrMalformedState)
	}
	return &state, nil
}
