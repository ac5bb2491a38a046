// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chromium-googlesource-mirror/google-cache-invalidation-api/internal/throttle"
)

// AckDrainOrder chooses which end of the pending-ack queue
// TakeOutboundMessage drains from when more acks are backlogged than
// fit in one message.
type AckDrainOrder string

const (
	// AckDrainLIFO drains newest-first: a newer invalidation for the
	// same object supersedes an older one anyway, so this is the
	// default and matches the behavior described for the core.
	AckDrainLIFO AckDrainOrder = "lifo"

	// AckDrainFIFO drains oldest-first. Pick this for deployments with
	// many high-churn objects, where LIFO draining can starve the acks
	// for objects that stopped changing — those acks would otherwise
	// sit at the front of the queue forever while newer ones keep
	// jumping ahead of them.
	AckDrainFIFO AckDrainOrder = "fifo"
)

// RateLimit is one YAML-loadable entry of ClientConfig.RateLimits.
type RateLimit struct {
	WindowMillis int64 `yaml:"window_ms"`
	Count        int   `yaml:"count"`
}

func (r RateLimit) toThrottleLimit() throttle.Limit {
	return throttle.Limit{Window: time.Duration(r.WindowMillis) * time.Millisecond, Count: r.Count}
}

// ClientConfig holds every tunable the core reads. Zero-value fields
// left unset by a partially-specified YAML file keep whatever
// DefaultConfig put there, since LoadConfigFile unmarshals on top of
// the defaults rather than a blank struct.
type ClientConfig struct {
	// PeriodicTaskIntervalMillis is the base cadence of the orchestrator's tick.
	PeriodicTaskIntervalMillis int64 `yaml:"periodic_task_interval_ms"`

	// SmearFactor jitters the periodic tick's delay by this fraction;
	// values outside (0, 1] are replaced with 0.20.
	SmearFactor float64 `yaml:"smear_factor"`

	// SeqnoBlockSize is how many sequence numbers are reserved per writeback.
	SeqnoBlockSize int64 `yaml:"seqno_block_size"`

	// MaxOpsPerMessage caps the combined registration+ack entries per outbound message.
	MaxOpsPerMessage int `yaml:"max_ops_per_message"`

	// HeartbeatIntervalMillis is the default heartbeat cadence before
	// the server overrides it with a next_message_delay hint.
	HeartbeatIntervalMillis int64 `yaml:"heartbeat_interval_ms"`

	// PollingIntervalMillis is the default polling cadence before the
	// server overrides it with a polling_interval hint.
	PollingIntervalMillis int64 `yaml:"polling_interval_ms"`

	// RateLimits configures the outbound Throttle. At least one entry is required.
	RateLimits []RateLimit `yaml:"rate_limits"`

	// AckDrainOrder selects LIFO (default) or FIFO ack-queue draining.
	AckDrainOrder AckDrainOrder `yaml:"ack_drain_order"`

	// ProtocolVersion is stamped onto every outbound message. ClientType
	// is not read by Create: the client type stamped onto outbound
	// messages is Create's clientType argument.
	ProtocolVersion int32 `yaml:"protocol_version"`
	ClientType      int32 `yaml:"client_type"`
}

// DefaultConfig returns a ClientConfig with protocol-typical values:
// a 20-minute tick, 20% smear, 1024-sequence-number blocks, up to 5
// registration/ack entries per message, a 30-minute heartbeat and
// 20-minute poll absent server hints, and a conservative {1/s, 6/min}
// outbound rate limit.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		PeriodicTaskIntervalMillis: 20 * 60 * 1000,
		SmearFactor:                0.20,
		SeqnoBlockSize:             1024,
		MaxOpsPerMessage:           5,
		HeartbeatIntervalMillis:    30 * 60 * 1000,
		PollingIntervalMillis:      20 * 60 * 1000,
		RateLimits: []RateLimit{
			{WindowMillis: 1000, Count: 1},
			{WindowMillis: 60_000, Count: 6},
		},
		AckDrainOrder:   AckDrainLIFO,
		ProtocolVersion: 1,
		ClientType:      0,
	}
}

// LoadConfigFile reads a YAML file and unmarshals it on top of
// DefaultConfig, so a file that only sets a few fields still gets
// sane values for everything else.
func LoadConfigFile(path string) (*ClientConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ticl: reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ticl: parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ticl: validating config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports a descriptive error for any field whose value
// would make the core's contracts unsatisfiable (a non-positive
// delay, an empty rate-limit list).
func (c *ClientConfig) Validate() error {
	if c.PeriodicTaskIntervalMillis <= 0 {
		return fmt.Errorf("periodic_task_interval_ms must be positive, got %d", c.PeriodicTaskIntervalMillis)
	}
	if c.SeqnoBlockSize <= 0 {
		return fmt.Errorf("seqno_block_size must be positive, got %d", c.SeqnoBlockSize)
	}
	if c.MaxOpsPerMessage <= 0 {
		return fmt.Errorf("max_ops_per_message must be positive, got %d", c.MaxOpsPerMessage)
	}
	if c.HeartbeatIntervalMillis <= 0 {
		return fmt.Errorf("heartbeat_interval_ms must be positive, got %d", c.HeartbeatIntervalMillis)
	}
	if c.PollingIntervalMillis <= 0 {
		return fmt.Errorf("polling_interval_ms must be positive, got %d", c.PollingIntervalMillis)
	}
	if len(c.RateLimits) == 0 {
		return fmt.Errorf("rate_limits must have at least one entry")
	}
	if c.AckDrainOrder != AckDrainLIFO && c.AckDrainOrder != AckDrainFIFO {
		return fmt.Errorf("ack_drain_order must be %q or %q, got %q", AckDrainLIFO, AckDrainFIFO, c.AckDrainOrder)
	}
	return nil
}

func (c *ClientConfig) throttleLimits() []throttle.Limit {
	limits := make([]throttle.Limit, len(c.RateLimits))
	for i, rl := range c.RateLimits {
		limits[i] = rl.toThrottleLimit()
	}
	return limits
}
