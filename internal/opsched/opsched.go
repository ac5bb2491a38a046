// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package opsched de-duplicates future invocations of named
// operations: scheduling an operation that already has a pending
// invocation is a no-op, so a burst of triggers for the same
// recurring task (heartbeat, network timeout check) collapses to one
// delayed run instead of piling up.
package opsched

import (
	"fmt"
	"sync"
	"time"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/smear"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/clock"
)

// entry holds the registered delay and run state for one operation.
type entry struct {
	delay   time.Duration
	name    string
	run     func()
	pending bool
	timer   *clock.Timer
}

// Scheduler de-duplicates future invocations of operations identified
// by a key of type K. Call [Scheduler.Set] once per operation to
// register its nominal delay and callback, then [Scheduler.Schedule]
// whenever the operation should run — repeated calls within the delay
// window collapse to a single run.
//
// A Scheduler is safe for concurrent use.
type Scheduler[K comparable] struct {
	mu      sync.Mutex
	clock   clock.Clock
	smearer *smear.Smearer
	entries map[K]*entry
}

// New returns a Scheduler that times its deferred runs against clock
// and jitters their delay with smearer.
func New[K comparable](clk clock.Clock, smearer *smear.Smearer) *Scheduler[K] {
	return &Scheduler[K]{
		clock:   clk,
		smearer: smearer,
		entries: make(map[K]*entry),
	}
}

// Set registers op's nominal delay, a human-readable name for logging,
// and the callback to run when the operation fires. Returns an error
// if op is already registered or delay is not positive — both are
// programmer-contract violations a caller should treat as fatal, not
// handle at runtime.
func (s *Scheduler[K]) Set(op K, delay time.Duration, name string, run func()) error {
	if delay <= 0 {
		return fmt.Errorf("opsched: delay for %q must be positive, got %v", name, delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[op]; exists {
		return fmt.Errorf("opsched: operation %q already registered", name)
	}

	s.entries[op] = &entry{delay: delay, name: name, run: run}
	return nil
}

// Schedule arranges for op's callback to run after a smeared delay,
// unless a run is already pending, in which case it does nothing.
// Panics if op was never registered with Set.
func (s *Scheduler[K]) Schedule(op K) {
	s.mu.Lock()

	e, ok := s.entries[op]
	if !ok {
		s.mu.Unlock()
		panic(fmt.Sprintf("opsched: Schedule called for unregistered operation %v", op))
	}
	if e.pending {
		s.mu.Unlock()
		return
	}
	e.pending = true
	delay := s.smearer.Smear(e.delay)

	e.timer = s.clock.AfterFunc(delay, func() { s.fire(op) })
	s.mu.Unlock()
}

// fire clears the pending flag before invoking the operation's
// callback, matching the contract that a reschedule from within the
// callback starts a fresh delay window rather than being coalesced
// with the run that is currently executing.
func (s *Scheduler[K]) fire(op K) {
	s.mu.Lock()
	e, ok := s.entries[op]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.pending = false
	run := e.run
	s.mu.Unlock()

	run()
}

// Pending reports whether op has a run currently scheduled. Intended
// for tests; production code has no need to inspect this.
func (s *Scheduler[K]) Pending(op K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[op]
	return ok && e.pending
}

// Cancel stops op's pending run, if any, without running its
// callback.
func (s *Scheduler[K]) Cancel(op K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[op]
	if !ok || !e.pending {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.pending = false
}
