// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

import (
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/registration"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/wire"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/objectid"
)

func toWireObjectID(oid objectid.ObjectID) wire.ObjectID {
	return wire.ObjectID{Source: oid.Source, Name: oid.Name}
}

func fromWireObjectID(oid wire.ObjectID) objectid.ObjectID {
	return objectid.ObjectID{Source: oid.Source, Name: oid.Name}
}

func toWireOpType(t objectid.OpType) wire.RegistrationOpType {
	if t == objectid.OpRegister {
		return wire.RegistrationOpRegister
	}
	return wire.RegistrationOpUnregister
}

func fromWireOpType(t wire.RegistrationOpType) objectid.OpType {
	if t == wire.RegistrationOpRegister {
		return objectid.OpRegister
	}
	return objectid.OpUnregister
}

func toWireRegistrationOp(op registration.Op) wire.RegistrationOp {
	return wire.RegistrationOp{
		ObjectID: toWireObjectID(op.ObjectID),
		Op:       toWireOpType(op.Type),
		OpSeqno:  op.OpSeqno,
	}
}

func fromWireRegistrationStatus(status wire.RegistrationStatus) registration.Status {
	return registration.Status{
		ObjectID:  fromWireObjectID(status.ObjectID),
		Type:      fromWireOpType(status.Op),
		OpSeqno:   status.OpSeqno,
		Success:   status.Success,
		Permanent: status.Permanent,
	}
}

func fromWireInvalidation(inv wire.Invalidation) objectid.Invalidation {
	stampLog := make([]objectid.Stamp, len(inv.StampLog))
	for i, s := range inv.StampLog {
		stampLog[i] = objectid.Stamp{Tag: s.Tag, Timestamp: s.TimestampMillis}
	}
	return objectid.Invalidation{
		ObjectID: fromWireObjectID(inv.ObjectID),
		Version:  inv.Version,
		Payload:  inv.Payload,
		StampLog: stampLog,
	}
}

func toWireAck(inv objectid.Invalidation) wire.Ack {
	var stampLog []wire.Stamp
	if len(inv.StampLog) > 0 {
		stampLog = make([]wire.Stamp, len(inv.StampLog))
		for i, s := range inv.StampLog {
			stampLog[i] = wire.Stamp{Tag: s.Tag, TimestampMillis: s.Timestamp}
		}
	}
	return wire.Ack{ObjectID: toWireObjectID(inv.ObjectID), Version: inv.Version, StampLog: stampLog}
}
