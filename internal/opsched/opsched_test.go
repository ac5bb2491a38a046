// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package opsched

import (
	"testing"
	"time"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/smear"
	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/clock"
)

func TestScheduleRunsAfterDelay(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	s := New[string](fake, smear.NewWithSeed(0.1, 1))

	ran := make(chan struct{}, 1)
	if err := s.Set("heartbeat", 10*time.Second, "heartbeat", func() { ran <- struct{}{} }); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.Schedule("heartbeat")
	if !s.Pending("heartbeat") {
		t.Fatal("Pending = false immediately after Schedule")
	}

	fake.Advance(15 * time.Second)

	select {
	case <-ran:
	default:
		t.Fatal("operation did not run after the clock advanced past its delay")
	}
	if s.Pending("heartbeat") {
		t.Error("Pending = true after the operation ran")
	}
}

func TestScheduleCoalescesRepeatedCalls(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	s := New[string](fake, smear.NewWithSeed(0.1, 2))

	runs := 0
	if err := s.Set("op", 10*time.Second, "op", func() { runs++ }); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.Schedule("op")
	s.Schedule("op")
	s.Schedule("op")

	fake.Advance(15 * time.Second)

	if runs != 1 {
		t.Errorf("runs = %d, want 1 (repeated Schedule calls should coalesce)", runs)
	}
}

func TestScheduleAgainAfterFiring(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	s := New[string](fake, smear.NewWithSeed(0.1, 3))

	runs := 0
	if err := s.Set("op", 10*time.Second, "op", func() { runs++ }); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.Schedule("op")
	fake.Advance(15 * time.Second)
	s.Schedule("op")
	fake.Advance(15 * time.Second)

	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}

func TestSetRejectsDuplicateOrNonPositiveDelay(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	s := New[string](fake, smear.NewWithSeed(0.1, 4))

	if err := s.Set("op", 0, "op", func() {}); err == nil {
		t.Error("Set with zero delay should fail")
	}
	if err := s.Set("op", -time.Second, "op", func() {}); err == nil {
		t.Error("Set with negative delay should fail")
	}
	if err := s.Set("op", time.Second, "op", func() {}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("op", time.Second, "op", func() {}); err == nil {
		t.Error("Set with an already-registered key should fail")
	}
}

func TestScheduleUnregisteredOpPanics(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	s := New[string](fake, smear.NewWithSeed(0.1, 5))

	defer func() {
		if recover() == nil {
			t.Error("Schedule on an unregistered op should panic")
		}
	}()
	s.Schedule("never-set")
}

func TestCancelPreventsRun(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	s := New[string](fake, smear.NewWithSeed(0.1, 6))

	ran := false
	if err := s.Set("op", 10*time.Second, "op", func() { ran = true }); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.Schedule("op")
	s.Cancel("op")
	fake.Advance(15 * time.Second)

	if ran {
		t.Error("operation ran after Cancel")
	}
	if s.Pending("op") {
		t.Error("Pending = true after Cancel")
	}
}

func TestRescheduleFromWithinCallback(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	s := New[string](fake, smear.NewWithSeed(0.1, 7))

	runs := 0
	var cb func()
	cb = func() {
		runs++
		if runs < 3 {
			s.Schedule("self")
		}
	}
	if err := s.Set("self", 5*time.Second, "self", func() { cb() }); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.Schedule("self")
	for i := 0; i < 3; i++ {
		fake.Advance(6 * time.Second)
	}

	if runs != 3 {
		t.Errorf("runs = %d, want 3", runs)
	}
}
