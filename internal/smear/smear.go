// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// Package smear applies multiplicative jitter to a nominal delay so
// that many clients scheduling the "same" periodic task do not
// converge on the same wall-clock instant.
package smear

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultFraction is the smear fraction used when none is configured.
const DefaultFraction = 0.20

// Smearer draws a uniform sample from [d*(1-f), d*(1+f)] for a nominal
// delay d and smear fraction f. Each Smearer owns its own random
// source: sharing one across components would make per-component
// tests non-deterministic in aggregate even when each test seeds its
// own Smearer.
type Smearer struct {
	fraction float64
	random   *rand.Rand
}

// New returns a Smearer with the given smear fraction, sourcing
// randomness from random. fraction must be in (0, 1]; any other value
// (zero, which would make every sample exactly d, a negative value,
// or one above 1) is replaced with DefaultFraction.
func New(fraction float64, random *rand.Rand) *Smearer {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultFraction
	}
	return &Smearer{fraction: fraction, random: random}
}

// NewWithSeed returns a Smearer seeded deterministically, for tests
// that need reproducible jitter without controlling a shared source.
func NewWithSeed(fraction float64, seed uint64) *Smearer {
	return New(fraction, rand.New(rand.NewPCG(seed, seed)))
}

// Smear returns a uniformly distributed delay in
// [nominal*(1-fraction), nominal*(1+fraction)]. Panics if nominal is
// negative.
func (s *Smearer) Smear(nominal time.Duration) time.Duration {
	if nominal < 0 {
		panic(fmt.Sprintf("smear: negative nominal delay %v", nominal))
	}
	low := float64(nominal) * (1 - s.fraction)
	high := float64(nominal) * (1 + s.fraction)
	sample := low + s.random.Float64()*(high-low)
	return time.Duration(sample)
}
