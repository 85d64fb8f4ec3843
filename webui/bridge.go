package webui

import (
	"context"
	"sync"

	"syncmonitor/logging"
	"syncmonitor/progress"
	"syncmonitor/wallet"

	"go.uber.org/zap"
)

// Broadcaster sends a message to every connected client.
type Broadcaster interface {
	BroadcastMessage(msg WSMessage)
}

// ForwardProgress relays every event the monitor publishes to b until ctx is
// cancelled or the monitor closes its publisher. Intermediate events may be
// skipped if the monitor publishes faster than they are relayed; the newest
// one is always delivered.
func ForwardProgress(ctx context.Context, monitor Monitor, b Broadcaster, logger *logging.Logger) {
	sub := monitor.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				logger.Debug("progress stream closed")
				return
			}
			logEvent(logger, ev)
			b.BroadcastMessage(NewEventMessage(ev))
		}
	}
}

func logEvent(logger *logging.Logger, ev progress.Event) {
	if ev.IsError() {
		logger.Debug("relaying sync error", zap.String("kind", string(ev.Err)))
		return
	}
	if ev.Snapshot != nil {
		logger.Debug("relaying progress", logging.SyncFields(ev.Snapshot.Current, ev.Snapshot.Highest)...)
	}
}

// BalancesLoaded returns a wallet OnLoaded callback that broadcasts each
// successful load.
func BalancesLoaded(b Broadcaster) func(snap wallet.Snapshot) {
	return func(snap wallet.Snapshot) {
		b.BroadcastMessage(NewBalancesMessage(snap))
	}
}

// BroadcastRelay forwards to a Broadcaster attached after construction.
// Messages sent before Attach are dropped.
type BroadcastRelay struct {
	mu sync.RWMutex
	b  Broadcaster
}

// Attach sets the target broadcaster.
func (r *BroadcastRelay) Attach(b Broadcaster) {
	r.mu.Lock()
	r.b = b
	r.mu.Unlock()
}

// BroadcastMessage implements Broadcaster.
func (r *BroadcastRelay) BroadcastMessage(msg WSMessage) {
	r.mu.RLock()
	b := r.b
	r.mu.RUnlock()
	if b != nil {
		b.BroadcastMessage(msg)
	}
}
