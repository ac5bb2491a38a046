// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package ticl implements a client-side cache-invalidation core: an
// embeddable component that maintains a session with an invalidation
// service, reconciles per-object registration state, and delivers
// each invalidation it receives to an application listener, in the
// order received; an invalidation the server sends twice is delivered
// twice.
//
// A typical embedding application constructs a [SystemResources],
// calls [Create] with a [Listener] implementation and (on restart)
// the serialized state from the previous run, wires the transport's
// inbound path to [Client.HandleInboundMessage] and its outbound path
// to [Client.TakeOutboundMessage] via [Client.RegisterOutboundListener],
// and calls [Client.Register] / [Client.Unregister] as the
// application's interest in objects changes.
//
// The client never opens a socket itself: framing, transport, and
// retry-on-disconnect are the embedding application's responsibility.
// This mirrors a library meant to sit underneath many different
// transports (long-poll HTTP, a persistent TCP connection, a mobile
// push channel) rather than assuming any one of them.
package ticl
