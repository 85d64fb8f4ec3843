package blockchain

import (
	"syncmonitor/logging"
	"syncmonitor/progress"
)

// completeLocked ends the cycle once the node has caught up. It runs at most
// once per cycle: loaded stays true until the next Refresh.
func (s *Service) completeLocked(snap progress.Snapshot) {
	if s.st.loaded {
		return
	}

	s.st.loaded = true
	s.st.interval = s.cfg.DefaultInterval
	s.cancelSwitchLocked()
	s.st.state = StateCompleted

	s.logger.Info("node synced, loading balances", logging.SyncFields(snap.Current, snap.Highest)...)
	s.metrics.RecordCompletion()
	s.wallet.LoadBalances()

	// the loop exits on its own once handleTick returns
	s.stopLoopLocked()
}
