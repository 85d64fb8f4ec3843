// Package metrics provides the data types for poll metrics.
// This file contains plain data definitions with no behavior.
package metrics

import (
	"time"

	"syncmonitor/progress"
)

// CycleRecord describes one refresh cycle, from Refresh to its outcome.
type CycleRecord struct {
	// ID is a unique identifier for the cycle
	ID string `json:"id"`

	// StartedAt is when Refresh started the cycle
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the cycle reached its outcome (zero while running)
	EndedAt time.Time `json:"ended_at,omitempty"`

	// Outcome is one of the CycleOutcome constants
	Outcome string `json:"outcome"`

	// ErrorKind is set when Outcome is CycleOutcomeError
	ErrorKind progress.ErrorKind `json:"error_kind,omitempty"`

	// Ticks is the number of successful polls in the cycle
	Ticks int64 `json:"ticks"`

	// Accelerated is true if the cycle switched to the fast interval
	Accelerated bool `json:"accelerated"`

	// LastCurrent and LastHighest are the heights of the last poll
	LastCurrent uint64 `json:"last_current"`
	LastHighest uint64 `json:"last_highest"`
}

// Duration returns how long the cycle ran, up to now if it is still running.
func (c CycleRecord) Duration() time.Duration {
	if c.EndedAt.IsZero() {
		return time.Since(c.StartedAt)
	}
	return c.EndedAt.Sub(c.StartedAt)
}

// PeerSample is one reading of the node's peer connections.
type PeerSample struct {
	// Total is the number of connected peers
	Total int `json:"total"`

	// Outgoing is the number of peers the node dialled
	Outgoing int `json:"outgoing"`

	// At is when the sample was taken
	At time.Time `json:"at"`
}

// PollMetrics aggregates poll activity since startup.
type PollMetrics struct {
	TotalRefreshes   int64 `json:"total_refreshes"`
	TotalTicks       int64 `json:"total_ticks"`
	TotalCompletions int64 `json:"total_completions"`
	IntervalSwitches int64 `json:"interval_switches"`

	// ErrorsByKind counts published errors per kind
	ErrorsByKind map[progress.ErrorKind]int64 `json:"errors_by_kind"`

	// LastSnapshot is the most recent progress report, nil before the first
	LastSnapshot *progress.Snapshot `json:"last_snapshot,omitempty"`
	LastTickAt   time.Time          `json:"last_tick_at,omitempty"`

	// CurrentInterval is the interval of the last switch, zero if none
	CurrentInterval time.Duration `json:"current_interval"`

	// Peers is the latest peer sample
	Peers PeerSample `json:"peers"`
}

// SystemStatus represents the overall process health.
type SystemStatus struct {
	// Health is one of the SystemHealth constants
	Health string `json:"health"`

	// Version is the application version string
	Version string `json:"version"`

	// Uptime is the duration since the application started
	Uptime time.Duration `json:"uptime"`

	// LastCheck is when the status was computed
	LastCheck time.Time `json:"last_check"`
}

// Outcome constants for CycleRecord
const (
	CycleOutcomeRunning   = "running"
	CycleOutcomeCompleted = "completed"
	CycleOutcomeError     = "error"
	CycleOutcomeCancelled = "cancelled"
)

// Health constants for SystemStatus
const (
	SystemHealthRunning = "running"
	SystemHealthSyncing = "syncing"
	SystemHealthError   = "error"
)
