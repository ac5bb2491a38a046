// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

import "errors"

// ErrShutdown describes a client that has been permanently shut down.
// No exported method returns it: after PermanentShutdown,
// TakeOutboundMessage reports ok=false once the SHUTDOWN message has
// gone out, and HandleInboundMessage ignores what it receives.
var ErrShutdown = errors.New("ticl: client is permanently shut down")

// ErrMalformedState is wrapped by the error the state decoder returns
// when a serialized state blob fails to decode or fails its digest
// check. Create does not return it: it logs a warning and starts
// fresh, the same as for an absent blob.
var ErrMalformedState = errors.New("ticl: persisted state failed its digest check")
