// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

// AckFunc acknowledges a delivered invalidation. Calling it enqueues
// the invalidation onto the pending-ack queue and wakes the network
// manager so the ack goes out on a subsequent outbound message.
// Calling it more than once has no additional effect.
type AckFunc func()

// Listener receives every callback the client makes into the
// application. Implementations must not block: they run on the
// client's listener executor, a single serial worker, so a slow
// listener delays every subsequent callback behind it.
type Listener interface {
	// Invalidate delivers one object-version change. The listener must
	// call ack once it has durably noted the invalidation.
	Invalidate(inv Invalidation, ack AckFunc)

	// InvalidateAll delivers the distinguished "treat every registered
	// object as stale" signal in place of an ordinary Invalidate call.
	InvalidateAll(ack AckFunc)

	// SessionStatusChanged reports whether the client currently has a
	// live session with the server.
	SessionStatusChanged(acquired bool)

	// RegistrationStateChanged reports a confirmed, rejected, or
	// session-lost change to one object's registration state.
	RegistrationStateChanged(oid ObjectID, state ConfirmedState, reason RegistrationReason)
}
