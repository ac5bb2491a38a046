// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package throttle

import (
	"testing"
	"time"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/lib/clock"
)

func TestFireUnderLimitRunsImmediately(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	count := 0
	th, err := New(fake, []Limit{{Window: time.Second, Count: 1}}, func() { count++ })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	th.Fire()
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestFireOverLimitDefers(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	count := 0
	th, err := New(fake, []Limit{{Window: time.Second, Count: 1}}, func() { count++ })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	th.Fire()
	th.Fire() // exceeds the 1-per-second limit, should defer
	if count != 1 {
		t.Fatalf("count = %d after second Fire, want 1 (deferred)", count)
	}

	fake.Advance(1100 * time.Millisecond)
	if count != 2 {
		t.Fatalf("count = %d after advance, want 2", count)
	}
}

func TestFireCoalescesDuringDeferral(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	count := 0
	th, err := New(fake, []Limit{{Window: time.Second, Count: 1}}, func() { count++ })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	th.Fire()
	for i := 0; i < 50; i++ {
		th.Fire()
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (all excess fires coalesced)", count)
	}

	fake.Advance(1100 * time.Millisecond)
	if count != 2 {
		t.Fatalf("count = %d after advance, want 2", count)
	}
}

func TestMultiWindowLimitsBothEnforced(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	count := 0
	th, err := New(fake, []Limit{
		{Window: time.Second, Count: 1},
		{Window: time.Minute, Count: 6},
	}, func() { count++ })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Fire once per second for ten seconds: the 1/s window lets every
	// one of these through, but the 6/min window caps it at 6.
	for i := 0; i < 10; i++ {
		th.Fire()
		fake.Advance(time.Second)
	}

	if count > 6 {
		t.Fatalf("count = %d, want at most 6 within any 60s window", count)
	}
}

func TestThrottleStorm(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	count := 0
	th, err := New(fake, []Limit{
		{Window: time.Second, Count: 1},
		{Window: time.Minute, Count: 6},
	}, func() { count++ })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const tick = 10 * time.Millisecond
	const total = 5 * time.Minute
	for elapsed := time.Duration(0); elapsed < total; elapsed += tick {
		th.Fire()
		fake.Advance(tick)
	}

	want := 6*5 + 1
	if count != want {
		t.Errorf("count = %d, want %d", count, want)
	}
}

func TestNewRejectsInvalidLimits(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	if _, err := New(fake, nil, func() {}); err == nil {
		t.Error("New with no limits should fail")
	}
	if _, err := New(fake, []Limit{{Window: 0, Count: 1}}, func() {}); err == nil {
		t.Error("New with zero window should fail")
	}
	if _, err := New(fake, []Limit{{Window: time.Second, Count: 0}}, func() {}); err == nil {
		t.Error("New with zero count should fail")
	}
}
