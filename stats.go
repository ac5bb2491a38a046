// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package ticl

// Stats is a snapshot of the client's lifetime counters, useful for
// dashboards and tests; nothing in the client reads these back to
// make decisions.
type Stats struct {
	MessagesSent           int64
	MessagesReceived       int64
	MessagesMalformed      int64
	InvalidationsDelivered int64
	AcksQueued             int64
	AcksSent               int64
	SeqnoWritebacks        int64
	PersistenceFailures    int64
	ClientIDsForgotten     int64
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
