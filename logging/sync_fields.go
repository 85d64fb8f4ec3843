package logging

import (
	"time"

	"go.uber.org/zap"
)

// SyncFields returns the standard fields for a sync progress snapshot.
//
// Example:
//
//	logger.Debug("progress", logging.SyncFields(snap.Current, snap.Highest)...)
func SyncFields(current, highest uint64) []zap.Field {
	var remaining uint64
	if highest > current {
		remaining = highest - current
	}
	return []zap.Field{
		zap.Uint64("current_block", current),
		zap.Uint64("highest_block", highest),
		zap.Uint64("blocks_remaining", remaining),
	}
}

// IntervalField names the poll cadence consistently across components.
func IntervalField(d time.Duration) zap.Field {
	return zap.Duration("poll_interval", d)
}
