package blockchain

import (
	"context"
	"errors"
	"fmt"

	"syncmonitor/nodeapi"
	"syncmonitor/progress"

	"go.uber.org/zap"
)

// ErrNoActiveConnections is returned by the connectivity check when the node
// answered but has no peers. The NO_ACTIVE_CONNECTIONS event has already been
// published when it is returned.
var ErrNoActiveConnections = errors.New("blockchain: node has no active connections")

// runCycle gates the poll loop on a successful connectivity check.
func (s *Service) runCycle(ctx context.Context, gen uint64) {
	defer s.wg.Done()

	status, err := s.checkConnections(ctx, gen)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.st.generation {
		return
	}

	switch {
	case errors.Is(err, ErrNoActiveConnections):
		// already published
		return
	case err != nil:
		s.failLocked(progress.UnavailableBackend, err)
		return
	}

	s.st.cycleCancel()
	s.st.cycleCancel = nil

	s.logger.Debug("node connectivity confirmed", zap.Int("connections", len(status.Connections)))
	s.startLoopLocked()
}

// checkConnections issues one connection status query. Transport failures are
// returned to the caller. Zero connections are published here and reported as
// ErrNoActiveConnections.
func (s *Service) checkConnections(ctx context.Context, gen uint64) (*nodeapi.ConnectionStatus, error) {
	status, err := s.api.ConnectionStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("check connections: %w", err)
	}
	if status.HasActive() {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen == s.st.generation {
		s.failLocked(progress.NoActiveConnections, nil)
	}
	return nil, ErrNoActiveConnections
}
