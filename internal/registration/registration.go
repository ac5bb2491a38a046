// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package registration reconciles the client's desired per-object
// registration state against the state the server has confirmed, and
// allocates the monotonic sequence numbers that accompany each
// outbound register/unregister request.
//
// A Manager is not safe for concurrent use; the owning orchestrator is
// expected to serialize every call under its own lock.
package registration

import (
	"sort"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/objectid"
)

// Listener receives notifications when an object's registration state
// changes in a way the application should know about.
type Listener interface {
	RegistrationStateChanged(oid objectid.ObjectID, state objectid.ConfirmedState, reason objectid.RegistrationReason)
}

// record is the per-object bookkeeping the manager maintains.
type record struct {
	objectID  objectid.ObjectID
	desired   objectid.OpType
	confirmed objectid.ConfirmedState
	opSeqno   int64
	pending   bool
}

// Op is one register/unregister request ready to go out on the wire.
type Op struct {
	ObjectID objectid.ObjectID
	Type     objectid.OpType
	OpSeqno  int64
}

// Status is the server's response to a previously sent Op, fed back
// in from an inbound bundle.
type Status struct {
	ObjectID  objectid.ObjectID
	Type      objectid.OpType
	OpSeqno   int64
	Success   bool
	Permanent bool
}

// Manager owns the registration table and the sequence-number
// counter that allocates op_seqno values for outbound registration
// requests.
type Manager struct {
	listener Listener

	records map[objectid.ObjectIDKey]*record

	currentOpSeqno      int64
	sequenceNumberLimit int64
}

// FirstSequenceNumber is the seqno assigned to the first registration
// op a fresh (never-persisted) client ever issues.
const FirstSequenceNumber int64 = 1

// New returns a Manager whose sequence-number counter starts at
// initialSeqno and is permitted up to, but excluding, limit.
func New(listener Listener, initialSeqno, limit int64) *Manager {
	return &Manager{
		listener:            listener,
		records:             make(map[objectid.ObjectIDKey]*record),
		currentOpSeqno:      initialSeqno,
		sequenceNumberLimit: limit,
	}
}

func (m *Manager) getOrCreate(oid objectid.ObjectID) *record {
	key := oid.Key()
	rec, ok := m.records[key]
	if !ok {
		rec = &record{objectID: oid}
		m.records[key] = rec
	}
	return rec
}

// Register records that the application wants oid's invalidations.
func (m *Manager) Register(oid objectid.ObjectID) {
	m.setDesired(oid, objectid.OpRegister)
}

// Unregister records that the application no longer wants oid's
// invalidations.
func (m *Manager) Unregister(oid objectid.ObjectID) {
	m.setDesired(oid, objectid.OpUnregister)
}

func (m *Manager) setDesired(oid objectid.ObjectID, desired objectid.OpType) {
	rec := m.getOrCreate(oid)
	rec.desired = desired

	if desiredMatchesConfirmed(rec.desired, rec.confirmed) {
		return
	}

	rec.opSeqno = m.currentOpSeqno
	m.currentOpSeqno++
	rec.pending = true
}

func desiredMatchesConfirmed(desired objectid.OpType, confirmed objectid.ConfirmedState) bool {
	switch desired {
	case objectid.OpRegister:
		return confirmed == objectid.Registered
	default:
		return confirmed == objectid.Unregistered
	}
}

// HandleNewSession invalidates every confirmed state (the server on
// the other end of a new session has no memory of the old one) and
// resurfaces as pending every record the application actually wants
// registered. A record whose op is still pending keeps its op_seqno;
// one that had been confirmed gets a fresh one. Records whose desired
// state is the UNREGISTER default are left alone: there is nothing for
// the new session to undo.
func (m *Manager) HandleNewSession() {
	for _, rec := range m.records {
		rec.confirmed = objectid.Unknown
		if rec.desired == objectid.OpRegister {
			if !rec.pending {
				rec.opSeqno = m.currentOpSeqno
				m.currentOpSeqno++
			}
			rec.pending = true
		} else {
			rec.pending = false
		}
	}
}

// HandleLostSession has the same bookkeeping effect as
// HandleNewSession, plus it tells the listener that every
// previously-confirmed registration is gone.
func (m *Manager) HandleLostSession() {
	for _, rec := range m.records {
		wasRegistered := rec.confirmed == objectid.Registered
		rec.confirmed = objectid.Unknown
		if rec.desired == objectid.OpRegister {
			if !rec.pending {
				rec.opSeqno = m.currentOpSeqno
				m.currentOpSeqno++
			}
			rec.pending = true
		} else {
			rec.pending = false
		}
		if wasRegistered && m.listener != nil {
			m.listener.RegistrationStateChanged(rec.objectID, objectid.Unregistered, objectid.ReasonSessionLost)
		}
	}
}

// DoPeriodicRegistrationCheck reports whether any record has an
// outbound registration op waiting to be sent.
func (m *Manager) DoPeriodicRegistrationCheck() bool {
	for _, rec := range m.records {
		if rec.pending {
			return true
		}
	}
	return false
}

// AddOutboundData returns up to maxCount pending registration ops,
// oldest op_seqno first so that stragglers behind a busy object
// eventually get a turn. Including an op here does not clear its
// pending flag or refresh its op_seqno — that only happens once the
// server confirms it via ProcessInboundMessage.
func (m *Manager) AddOutboundData(maxCount int) []Op {
	var pending []*record
	for _, rec := range m.records {
		if rec.pending {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].opSeqno < pending[j].opSeqno })

	if len(pending) > maxCount {
		pending = pending[:maxCount]
	}

	ops := make([]Op, len(pending))
	for i, rec := range pending {
		ops[i] = Op{ObjectID: rec.objectID, Type: rec.desired, OpSeqno: rec.opSeqno}
	}
	return ops
}

// ProcessInboundMessage applies the server's registration-status
// entries from one inbound bundle.
func (m *Manager) ProcessInboundMessage(statuses []Status) {
	for _, status := range statuses {
		rec, ok := m.records[status.ObjectID.Key()]
		if !ok || rec.opSeqno != status.OpSeqno {
			continue
		}

		switch {
		case status.Success:
			rec.confirmed = opToConfirmedState(rec.desired)
			rec.pending = false
			if m.listener != nil {
				m.listener.RegistrationStateChanged(rec.objectID, rec.confirmed, objectid.ReasonConfirmed)
			}
		case status.Permanent:
			rec.pending = false
			if m.listener != nil {
				m.listener.RegistrationStateChanged(rec.objectID, opToConfirmedState(rec.desired), objectid.ReasonRejected)
			}
		default:
			// Transient failure: leave pending, retry on the next tick.
		}
	}
}

func opToConfirmedState(op objectid.OpType) objectid.ConfirmedState {
	if op == objectid.OpRegister {
		return objectid.Registered
	}
	return objectid.Unregistered
}

// UpdateMaximumSeqno raises the exclusive upper bound on sequence
// numbers the manager may assign, typically after a successful
// writeback claims a fresh block.
func (m *Manager) UpdateMaximumSeqno(limit int64) {
	m.sequenceNumberLimit = limit
}

// CurrentOpSeqno returns the next sequence number that will be
// assigned.
func (m *Manager) CurrentOpSeqno() int64 {
	return m.currentOpSeqno
}

// MaximumOpSeqnoInclusive returns the largest sequence number the
// manager may still assign under its current limit.
func (m *Manager) MaximumOpSeqnoInclusive() int64 {
	return m.sequenceNumberLimit - 1
}

// Exhausted reports whether the counter has run past the currently
// reserved block and a fresh writeback (or a client-id reset) is
// required before any more registration ops can be issued.
func (m *Manager) Exhausted() bool {
	return m.currentOpSeqno > m.sequenceNumberLimit
}

// Reset clears every record and resets the sequence-number counter.
// Used when the orchestrator forgets the client id: stale op_seqnos
// from the previous identity must never reappear on the wire.
func (m *Manager) Reset(initialSeqno, limit int64) {
	m.records = make(map[objectid.ObjectIDKey]*record)
	m.currentOpSeqno = initialSeqno
	m.sequenceNumberLimit = limit
}
