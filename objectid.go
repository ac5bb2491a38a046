// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

import "github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/objectid"

// ObjectID, Invalidation, and the registration-state vocabulary live
// in lib/objectid so that both this package and the internal
// subsystems can depend on them without a cycle. These aliases let
// applications write ticl.ObjectID instead of reaching into the
// internal dependency graph themselves.
type (
	ObjectID           = objectid.ObjectID
	Invalidation       = objectid.Invalidation
	Stamp              = objectid.Stamp
	ConfirmedState     = objectid.ConfirmedState
	RegistrationReason = objectid.RegistrationReason
)

const (
	Registered   = objectid.Registered
	Unregistered = objectid.Unregistered
	Unknown      = objectid.Unknown
)

const (
	ReasonConfirmed   = objectid.ReasonConfirmed
	ReasonSessionLost = objectid.ReasonSessionLost
	ReasonRejected    = objectid.ReasonRejected
)

// AllObjects is the distinguished object identifier that, when
// delivered as an invalidation, means every registered object should
// be treated as potentially stale.
var AllObjects = objectid.All
