package blockchain

import (
	"context"
	"time"

	"syncmonitor/logging"
	"syncmonitor/progress"

	"go.uber.org/zap"
)

// startLoopLocked starts a poll loop at the current interval, replacing any
// running one.
func (s *Service) startLoopLocked() {
	s.stopLoopLocked()
	s.st.generation++

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.st.loopCancel = cancel
	s.st.state = StatePolling

	gen := s.st.generation
	interval := s.st.interval

	s.logger.Debug("poll loop started", logging.IntervalField(interval))

	s.wg.Add(1)
	go s.pollLoop(ctx, gen, interval)
}

// pollLoop ticks immediately and then every interval until a tick says stop
// or ctx is cancelled. Ticks never overlap: a slow request delays the next
// tick instead of running alongside it.
func (s *Service) pollLoop(ctx context.Context, gen uint64, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := s.api.SyncProgress(ctx)
		if ctx.Err() != nil {
			return
		}
		if !s.handleTick(gen, snap, err) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// handleTick applies one poll result and reports whether the loop should
// keep going.
func (s *Service) handleTick(gen uint64, snap *progress.Snapshot, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.st.generation {
		return false
	}

	if err != nil {
		s.failLocked(progress.UnavailableBackend, err)
		return false
	}

	s.logger.Debug("sync progress", logging.SyncFields(snap.Current, snap.Highest)...)
	s.metrics.RecordTick(*snap)
	s.publisher.Publish(progress.SnapshotEvent(*snap))

	if heightKnown(*snap) && snap.Synced() {
		s.completeLocked(*snap)
	} else {
		s.maybeAccelerateLocked(gen, *snap)
	}

	keepGoing := snap.Current == 0 || !s.st.loaded
	if !keepGoing {
		s.logger.Debug("poll loop finished", zap.Uint64("current_block", snap.Current))
	}
	return keepGoing
}

// heightKnown reports whether the node has learned the chain height. A node
// that has not yet reports highest == 0.
func heightKnown(snap progress.Snapshot) bool {
	return snap.Highest > 0
}
