// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package throttle enforces multiple simultaneous rate limits on a
// single callback, deferring and coalescing excess fires rather than
// dropping or queueing them.
package throttle

import (
	"fmt"
	"time"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/clock"
)

// Limit caps the callback to Count invocations within any Window.
type Limit struct {
	Window time.Duration
	Count  int
}

// Throttle is not safe for concurrent use. It is designed to be
// embedded inside a component that already serializes access under
// its own lock (every method here, including the timer-driven retry,
// runs under that external lock); Throttle itself adds no
// synchronization of its own.
type Throttle struct {
	clock    clock.Clock
	listener func()
	limits   []Limit

	maxWindow time.Duration
	maxCount  int

	// recent holds the last maxCount fire times, oldest first.
	recent []time.Time

	retryArmed bool
	retryTimer *clock.Timer
}

// New returns a Throttle enforcing every limit in limits simultaneously,
// invoking fire when a call is allowed through. Returns an error if
// limits is empty or any entry has a non-positive window or count.
func New(clk clock.Clock, limits []Limit, fire func()) (*Throttle, error) {
	if len(limits) == 0 {
		return nil, fmt.Errorf("throttle: at least one limit is required")
	}

	var maxWindow time.Duration
	var maxCount int
	for _, limit := range limits {
		if limit.Window <= 0 || limit.Count <= 0 {
			return nil, fmt.Errorf("throttle: invalid limit %+v", limit)
		}
		if limit.Window > maxWindow {
			maxWindow = limit.Window
		}
		if limit.Count > maxCount {
			maxCount = limit.Count
		}
	}

	return &Throttle{
		clock:     clk,
		listener:  fire,
		limits:    append([]Limit(nil), limits...),
		maxWindow: maxWindow,
		maxCount:  maxCount,
	}, nil
}

// Fire requests an invocation of the configured callback. If every
// limit currently has headroom, the callback runs synchronously before
// Fire returns. Otherwise the call is deferred to the earliest instant
// at which every limit is satisfied; if a deferred fire is already
// armed, this call is silently coalesced with it.
func (t *Throttle) Fire() {
	now := t.clock.Now()
	t.dropExpired(now)

	violation, blocked := t.earliestLegalInstant(now)
	if !blocked {
		t.recent = append(t.recent, now)
		if len(t.recent) > t.maxCount {
			t.recent = t.recent[len(t.recent)-t.maxCount:]
		}
		t.listener()
		return
	}

	if t.retryArmed {
		return
	}
	t.retryArmed = true
	t.retryTimer = t.clock.AfterFunc(violation.Sub(now), t.retryFire)
}

// retryFire is the timer callback for a deferred Fire. It re-evaluates
// the limits at the current time rather than assuming the deferred
// instant is now legal, since a caller-held lock may have delayed
// delivery of the timer callback itself.
func (t *Throttle) retryFire() {
	t.retryArmed = false
	t.Fire()
}

// dropExpired removes recent fire times older than the widest window,
// since no limit can ever reference them again.
func (t *Throttle) dropExpired(now time.Time) {
	cutoff := now.Add(-t.maxWindow)
	i := 0
	for i < len(t.recent) && !t.recent[i].After(cutoff) {
		i++
	}
	t.recent = t.recent[i:]
}

// earliestLegalInstant reports the earliest time at which every limit
// would be satisfied, and whether any limit is currently violated.
func (t *Throttle) earliestLegalInstant(now time.Time) (time.Time, bool) {
	var violation time.Time
	for _, limit := range t.limits {
		if len(t.recent) < limit.Count {
			continue
		}
		oldestInWindow := t.recent[len(t.recent)-limit.Count]
		if now.Sub(oldestInWindow) < limit.Window {
			legalAt := oldestInWindow.Add(limit.Window)
			if legalAt.After(violation) {
				violation = legalAt
			}
		}
	}
	return violation, !violation.IsZero()
}
