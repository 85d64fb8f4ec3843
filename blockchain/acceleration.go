package blockchain

import (
	"time"

	"syncmonitor/logging"
	"syncmonitor/progress"
)

// maybeAccelerateLocked schedules the switch to the fast interval when the
// node is within NearCompletionBlocks of the tip. At most one switch is
// pending at a time and none is scheduled once the loop is already fast.
func (s *Service) maybeAccelerateLocked(gen uint64, snap progress.Snapshot) {
	if !heightKnown(snap) || snap.Remaining() > s.cfg.NearCompletionBlocks {
		return
	}
	if s.st.interval == s.cfg.FastInterval || s.st.switchPending {
		return
	}

	s.st.switchPending = true
	s.st.state = StateAccelerating
	s.st.switchTimer = time.AfterFunc(s.cfg.FastInterval, func() {
		s.switchToFast(gen)
	})

	s.logger.Info("node near chain tip, switching to fast polling",
		append(logging.SyncFields(snap.Current, snap.Highest), logging.IntervalField(s.cfg.FastInterval))...)
}

// switchToFast replaces the loop that scheduled it with one at the fast
// interval. It does nothing if that loop has since been cancelled.
func (s *Service) switchToFast(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.st.generation || !s.st.switchPending {
		return
	}

	s.st.switchPending = false
	s.st.switchTimer = nil
	s.st.interval = s.cfg.FastInterval
	s.metrics.RecordIntervalSwitch(s.st.interval)

	s.startLoopLocked()
}

func (s *Service) cancelSwitchLocked() {
	if s.st.switchTimer != nil {
		s.st.switchTimer.Stop()
		s.st.switchTimer = nil
	}
	s.st.switchPending = false
}
