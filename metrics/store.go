// Package metrics provides the MetricsStore for in-memory poll metrics.
package metrics

import (
	"sync"
	"time"

	"syncmonitor/progress"

	"github.com/google/uuid"
)

// MetricsStore keeps poll metrics in memory. It implements MetricsCollector
// and can be passed to blockchain.New as the Recorder.
//
// Finished cycles are kept in a fixed-size ring; the oldest is overwritten
// once it is full.
//
// Usage:
//
//	store := NewMetricsStore(DefaultStoreConfig(), time.Now())
//	svc, _ := blockchain.New(cfg, api, wallet, store, logger)
//	metrics := store.GetPollMetrics()
type MetricsStore struct {
	mu sync.RWMutex

	// Cycle history ring
	cycles    []CycleRecord
	cycleCap  int
	cycleHead int
	cycleSize int

	// Cycle in progress, nil between cycles
	current *CycleRecord

	// Aggregation
	totalRefreshes   int64
	totalTicks       int64
	totalCompletions int64
	intervalSwitches int64
	errorsByKind     map[progress.ErrorKind]int64

	lastSnapshot    *progress.Snapshot
	lastTickAt      time.Time
	currentInterval time.Duration
	peers           PeerSample

	// System metadata
	startTime time.Time
	version   string
}

// StoreConfig configures the MetricsStore behavior.
type StoreConfig struct {
	// CycleHistoryCapacity is the max number of finished cycles to retain
	CycleHistoryCapacity int
	// Version is the application version string
	Version string
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		CycleHistoryCapacity: 50,
		Version:              "0.0.0",
	}
}

// NewMetricsStore creates a MetricsStore. startTime is used for uptime.
func NewMetricsStore(config StoreConfig, startTime time.Time) *MetricsStore {
	capacity := config.CycleHistoryCapacity
	if capacity < 1 {
		capacity = 50
	}

	return &MetricsStore{
		cycles:       make([]CycleRecord, capacity),
		cycleCap:     capacity,
		errorsByKind: make(map[progress.ErrorKind]int64),
		startTime:    startTime,
		version:      config.Version,
	}
}

// RecordRefresh starts a new cycle. A cycle still running is closed as
// cancelled.
func (s *MetricsStore) RecordRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finishLocked(CycleOutcomeCancelled, "")
	s.totalRefreshes++
	s.current = &CycleRecord{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Outcome:   CycleOutcomeRunning,
	}
}

// RecordTick records one successful poll.
func (s *MetricsStore) RecordTick(snap progress.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalTicks++
	s.lastSnapshot = &progress.Snapshot{Current: snap.Current, Highest: snap.Highest}
	s.lastTickAt = time.Now()

	if s.current != nil {
		s.current.Ticks++
		s.current.LastCurrent = snap.Current
		s.current.LastHighest = snap.Highest
	}
}

// RecordError counts the error and ends the current cycle.
func (s *MetricsStore) RecordError(kind progress.ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errorsByKind[kind]++
	s.finishLocked(CycleOutcomeError, kind)
}

// RecordIntervalSwitch records a change of poll cadence.
func (s *MetricsStore) RecordIntervalSwitch(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intervalSwitches++
	s.currentInterval = interval
	if s.current != nil {
		s.current.Accelerated = true
	}
}

// RecordCompletion counts the completion and ends the current cycle.
func (s *MetricsStore) RecordCompletion() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalCompletions++
	s.finishLocked(CycleOutcomeCompleted, "")
}

// finishLocked moves the running cycle, if any, into the history ring.
func (s *MetricsStore) finishLocked(outcome string, kind progress.ErrorKind) {
	if s.current == nil {
		return
	}

	rec := *s.current
	rec.Outcome = outcome
	rec.ErrorKind = kind
	rec.EndedAt = time.Now()
	s.current = nil

	s.cycles[s.cycleHead] = rec
	s.cycleHead = (s.cycleHead + 1) % s.cycleCap
	if s.cycleSize < s.cycleCap {
		s.cycleSize++
	}
}

// UpdatePeers stores the latest peer sample.
func (s *MetricsStore) UpdatePeers(sample PeerSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = sample
}

// GetPollMetrics returns aggregated poll statistics.
func (s *MetricsStore) GetPollMetrics() PollMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := PollMetrics{
		TotalRefreshes:   s.totalRefreshes,
		TotalTicks:       s.totalTicks,
		TotalCompletions: s.totalCompletions,
		IntervalSwitches: s.intervalSwitches,
		ErrorsByKind:     make(map[progress.ErrorKind]int64, len(s.errorsByKind)),
		LastTickAt:       s.lastTickAt,
		CurrentInterval:  s.currentInterval,
		Peers:            s.peers,
	}
	for kind, n := range s.errorsByKind {
		metrics.ErrorsByKind[kind] = n
	}
	if s.lastSnapshot != nil {
		snap := *s.lastSnapshot
		metrics.LastSnapshot = &snap
	}
	return metrics
}

// GetRecentCycles returns the limit most recent finished cycles, oldest
// first. If limit exceeds the history, all of it is returned.
func (s *MetricsStore) GetRecentCycles(limit int) []CycleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.cycleSize == 0 {
		return []CycleRecord{}
	}
	if limit > s.cycleSize {
		limit = s.cycleSize
	}

	result := make([]CycleRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.cycleHead - limit + i + s.cycleCap) % s.cycleCap
		result[i] = s.cycles[idx]
	}
	return result
}

// CurrentCycle returns the running cycle, if any.
func (s *MetricsStore) CurrentCycle() (CycleRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return CycleRecord{}, false
	}
	return *s.current, true
}

// GetSystemStatus derives health from the most recent cycle: an error
// outcome is unhealthy, a running cycle is syncing.
func (s *MetricsStore) GetSystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	switch {
	case s.current != nil:
		health = SystemHealthSyncing
	case s.cycleSize > 0:
		last := s.cycles[(s.cycleHead-1+s.cycleCap)%s.cycleCap]
		if last.Outcome == CycleOutcomeError {
			health = SystemHealthError
		}
	}

	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Uptime:    time.Since(s.startTime),
		LastCheck: time.Now(),
	}
}

// Verify MetricsStore implements MetricsCollector interface
var _ MetricsCollector = (*MetricsStore)(nil)
