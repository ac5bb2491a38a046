// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration used to
// frame wire messages exchanged with the invalidation service and to
// serialize the persisted client state blob.
//
// CBOR was chosen over JSON for the wire protocol because the core only
// ever exchanges opaque byte-strings with its transport — there is no
// human consumer of the bytes on the wire, so the more compact binary
// encoding costs nothing in readability while shrinking every
// heartbeat and registration message.
//
// This package centralizes the encoding and decoding modes so that
// every message type round-trips identically regardless of which
// package produces or consumes it. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer encoding,
// no indefinite-length items. Same logical message always produces
// identical bytes, which matters for the digest computed over the
// persisted state blob.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Every type that crosses the wire or touches disk carries a `cbor`
// struct tag; none of them are also exposed as JSON, so there is no
// dual-tag ambiguity to manage.
package codec
