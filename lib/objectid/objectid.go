// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package objectid defines the identifiers and data types shared
// between the public client API and the internal subsystems that
// track registration and invalidation state per object. It has no
// dependency on the rest of the module, which is what lets both
// layers import it without a cycle.
package objectid

import "fmt"

// InternalSource is the reserved source value paired with the name
// "ALL" to mean "every object the client has registered interest in".
const InternalSource int32 = -1

// allName is the reserved name that, paired with InternalSource,
// denotes the invalidate-all object.
const allName = "ALL"

// ObjectID names one object a client can register interest in. Source
// is an application-defined numeric namespace; Name is an opaque byte
// string scoped to that namespace.
type ObjectID struct {
	Source int32
	Name   []byte
}

// All is the distinguished object identifier that, when delivered as
// an invalidation, means every registered object should be treated as
// potentially stale.
var All = ObjectID{Source: InternalSource, Name: []byte(allName)}

// IsAll reports whether id is the distinguished invalidate-all object.
func (id ObjectID) IsAll() bool {
	return id.Source == InternalSource && string(id.Name) == allName
}

func (id ObjectID) String() string {
	if id.IsAll() {
		return "ALL"
	}
	return fmt.Sprintf("%d/%s", id.Source, id.Name)
}

// Key returns a value suitable for use as a map key, since ObjectID
// itself contains a slice and cannot be compared or hashed directly.
func (id ObjectID) Key() ObjectIDKey {
	return ObjectIDKey{Source: id.Source, Name: string(id.Name)}
}

// ObjectIDKey is the comparable, map-key form of an ObjectID.
type ObjectIDKey struct {
	Source int32
	Name   string
}

func (k ObjectIDKey) ObjectID() ObjectID {
	return ObjectID{Source: k.Source, Name: []byte(k.Name)}
}

// OpType distinguishes a register request from an unregister request.
// The zero value is OpUnregister: a freshly created record, never
// touched by the application, desires to be unregistered (i.e. is not
// of interest), which matches its default confirmed state.
type OpType int

const (
	OpUnregister OpType = iota
	OpRegister
)

func (op OpType) String() string {
	if op == OpRegister {
		return "REGISTER"
	}
	return "UNREGISTER"
}

// ConfirmedState is the server-acknowledged registration state of an
// object, as distinct from the client's locally desired state. The
// zero value is Unregistered, matching the truth for an object no one
// has ever registered interest in.
type ConfirmedState int

const (
	Unregistered ConfirmedState = iota
	Registered

	// Unknown means the client held a confirmation for this object but
	// the session under which it was granted has since been lost or
	// replaced, so the confirmation can no longer be trusted.
	Unknown
)

func (s ConfirmedState) String() string {
	switch s {
	case Registered:
		return "REGISTERED"
	case Unknown:
		return "UNKNOWN"
	default:
		return "UNREGISTERED"
	}
}

// Stamp traces one hop an invalidation passed through on its way to
// the client, for latency diagnostics.
type Stamp struct {
	Tag       string
	Timestamp int64 // milliseconds since Unix epoch
}

// Invalidation is one object-version change delivered to the
// application's listener.
type Invalidation struct {
	ObjectID ObjectID
	Version  int64
	Payload  []byte
	StampLog []Stamp
}

// RegistrationReason explains why a RegistrationStateChanged callback
// fired with a particular state.
type RegistrationReason string

const (
	ReasonConfirmed   RegistrationReason = "confirmed"
	ReasonSessionLost RegistrationReason = "session-lost"
	ReasonRejected    RegistrationReason = "rejected"
)
