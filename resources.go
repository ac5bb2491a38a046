// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

import (
	"log/slog"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/clock"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/persistence"
)

// Executor runs submitted work items one at a time, in submission
// order, off the caller's goroutine. The client uses one Executor for
// listener callbacks and another for persistence writes, so neither
// can block the goroutine holding the client's lock.
type Executor interface {
	// Submit enqueues fn to run on the executor's worker. Submit itself
	// never blocks on fn's execution.
	Submit(fn func())
}

// SystemResources bundles every collaborator the client needs from
// its environment. Each field is a narrow interface rather than one
// fat interface bundling all of them, so a test can swap exactly the
// Clock (the overwhelmingly common case) without also stubbing
// logging, storage, and executor dispatch.
type SystemResources struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Storage persistence.Storage

	// Listener runs every callback into the application's Listener.
	Listener Executor

	// Persistence runs every Storage.Write dispatched by the client, so
	// a slow disk or network store never blocks the goroutine holding
	// the client's lock. If nil, Create installs a SerialExecutor.
	Persistence Executor
}

// defaultLogger is what Create installs when resources.Logger is nil.
func defaultLogger() *slog.Logger {
	return slog.Default()
}

// SerialExecutor is an Executor backed by one goroutine draining a
// buffered channel — the "single serial worker per executor" design
// that preserves the client's listener-delivery ordering guarantee
// without a goroutine per callback.
type SerialExecutor struct {
	work chan func()
}

// NewSerialExecutor starts a SerialExecutor with the given backlog
// capacity. Submit blocks once the backlog is full, which is the
// correct backpressure behavior for a slow or wedged listener rather
// than silently dropping work.
func NewSerialExecutor(backlog int) *SerialExecutor {
	e := &SerialExecutor{work: make(chan func(), backlog)}
	go e.run()
	return e
}

func (e *SerialExecutor) run() {
	for fn := range e.work {
		fn()
	}
}

func (e *SerialExecutor) Submit(fn func()) {
	e.work <- fn
}

// Close stops accepting new work at once; work already submitted
// still runs. Submit must not be called again after Close.
func (e *SerialExecutor) Close() {
	close(e.work)
}
