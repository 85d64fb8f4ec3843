// Package metrics provides the MetricsCollector interface for aggregating metrics.
package metrics

import (
	"time"

	"syncmonitor/progress"
)

// MetricsCollector collects poll metrics and serves them to the dashboard.
// The Record methods match blockchain.Recorder.
//
// Implementations must be safe for concurrent use and must not block: the
// Record methods are called with the monitor's lock held.
type MetricsCollector interface {
	// RecordRefresh marks the start of a new cycle.
	RecordRefresh()

	// RecordTick records one successful poll.
	RecordTick(s progress.Snapshot)

	// RecordError records a published error. It ends the current cycle.
	RecordError(kind progress.ErrorKind)

	// RecordIntervalSwitch records a change of poll cadence.
	RecordIntervalSwitch(interval time.Duration)

	// RecordCompletion records that the node caught up. It ends the
	// current cycle.
	RecordCompletion()

	// UpdatePeers stores the latest peer sample.
	UpdatePeers(sample PeerSample)

	// GetPollMetrics returns aggregated poll statistics.
	GetPollMetrics() PollMetrics

	// GetRecentCycles returns up to limit finished cycles, oldest first.
	GetRecentCycles(limit int) []CycleRecord

	// CurrentCycle returns the running cycle, if any.
	CurrentCycle() (CycleRecord, bool)

	// GetSystemStatus returns the overall health.
	GetSystemStatus() SystemStatus
}
