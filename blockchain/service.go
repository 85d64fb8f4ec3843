// Package blockchain monitors the sync progress of a blockchain node.
//
// Service runs one poll cycle at a time: a connectivity check, then a
// repeating progress poll whose cadence speeds up near the chain tip, ending
// in a single balance refresh once the node has caught up. Every outcome is
// published on a progress.Publisher; nothing is returned to the caller.
//
// Architecture:
//   - connectivity.go: connectivity gate run at the start of each cycle
//   - poller.go: the single poll loop and per-tick handling
//   - acceleration.go: deferred switch to the fast interval
//   - completion.go: one-shot completion handling
package blockchain

import (
	"context"
	"errors"
	"sync"
	"time"

	"syncmonitor/logging"
	"syncmonitor/nodeapi"
	"syncmonitor/progress"

	"go.uber.org/zap"
)

// NodeAPI is the subset of the node client the monitor uses.
// *nodeapi.Client implements it.
type NodeAPI interface {
	ConnectionStatus(ctx context.Context) (*nodeapi.ConnectionStatus, error)
	SyncProgress(ctx context.Context) (*progress.Snapshot, error)
	LastBlocks(ctx context.Context, n int) ([]nodeapi.Block, error)
	CoinSupply(ctx context.Context) (*nodeapi.CoinSupply, error)
}

// BalanceRefresher is the wallet collaborator. Both methods are called with
// the service lock held, so they must return promptly and must not call
// back into the Service.
type BalanceRefresher interface {
	// CancelPendingRefresh cancels an in-flight balance load. Safe to call
	// with nothing pending.
	CancelPendingRefresh()

	// LoadBalances starts a balance load and returns immediately.
	LoadBalances()
}

// Recorder receives poll metrics. A nil Recorder disables metrics.
type Recorder interface {
	RecordRefresh()
	RecordTick(s progress.Snapshot)
	RecordError(kind progress.ErrorKind)
	RecordIntervalSwitch(interval time.Duration)
	RecordCompletion()
}

var (
	// ErrNilAPI indicates the node API is nil.
	ErrNilAPI = errors.New("blockchain: node API cannot be nil")

	// ErrNilWallet indicates the balance refresher is nil.
	ErrNilWallet = errors.New("blockchain: balance refresher cannot be nil")
)

// pollState is everything a cycle mutates. Guarded by Service.mu.
type pollState struct {
	state    State
	interval time.Duration
	loaded   bool

	// generation identifies the live connectivity check or poll loop. It is
	// bumped whenever either is cancelled or replaced; callbacks carrying an
	// older value do nothing.
	generation uint64

	cycleCancel   context.CancelFunc
	loopCancel    context.CancelFunc
	switchTimer   *time.Timer
	switchPending bool
}

// Service is the sync progress monitor.
//
// Thread-Safety:
//   - All methods are safe for concurrent use
//   - At most one poll loop is active at any time
type Service struct {
	cfg       Config
	api       NodeAPI
	wallet    BalanceRefresher
	metrics   Recorder
	publisher *progress.Publisher
	logger    *logging.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu     sync.Mutex
	st     pollState
	closed bool

	wg sync.WaitGroup
}

// New creates an idle Service. Call Refresh to start the first cycle.
//
// Parameters:
//   - cfg: poll cadence (zero fields take the defaults)
//   - api: node API client
//   - wallet: balance collaborator notified on refresh and completion
//   - recorder: optional poll metrics sink, may be nil
//   - logger: structured logger, may be nil
func New(cfg Config, api NodeAPI, wallet BalanceRefresher, recorder Recorder, logger *logging.Logger) (*Service, error) {
	if api == nil {
		return nil, ErrNilAPI
	}
	if wallet == nil {
		return nil, ErrNilWallet
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		cfg:        cfg,
		api:        api,
		wallet:     wallet,
		metrics:    recorder,
		publisher:  progress.NewPublisher(),
		logger:     logger.Named("blockchain"),
		baseCtx:    ctx,
		baseCancel: cancel,
		st: pollState{
			state:    StateIdle,
			interval: cfg.DefaultInterval,
		},
	}, nil
}

// Refresh cancels whatever cycle is running and starts a new one. It returns
// immediately; results arrive on the progress stream.
func (s *Service) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.stopLocked()
	s.wallet.CancelPendingRefresh()
	s.st.loaded = false
	s.st.state = StateCheckingConnectivity

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.st.cycleCancel = cancel
	gen := s.st.generation

	s.metrics.RecordRefresh()
	s.logger.Info("starting sync progress cycle", logging.IntervalField(s.st.interval))

	s.wg.Add(1)
	go s.runCycle(ctx, gen)
}

// Subscribe returns a subscription that first receives the latest event, if
// any, then every later one.
func (s *Service) Subscribe() *progress.Subscription {
	return s.publisher.Subscribe()
}

// Latest returns the most recent progress event.
func (s *Service) Latest() (progress.Event, bool) {
	return s.publisher.Latest()
}

// State returns the current phase of the poll cycle.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.state
}

// Interval returns the cadence the next poll loop will use.
func (s *Service) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.interval
}

// LastBlock returns the most recent block known to the node.
func (s *Service) LastBlock(ctx context.Context) (*nodeapi.Block, error) {
	blocks, err := s.api.LastBlocks(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nodeapi.ErrNoBlocks
	}
	return &blocks[0], nil
}

// CoinSupply returns the node's coin supply.
func (s *Service) CoinSupply(ctx context.Context) (*nodeapi.CoinSupply, error) {
	return s.api.CoinSupply(ctx)
}

// Close stops any running cycle, waits for its goroutines and closes all
// subscriptions. Refresh is a no-op afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopLocked()
	s.st.state = StateIdle
	s.mu.Unlock()

	s.baseCancel()
	s.wg.Wait()
	s.publisher.Close()

	s.logger.Info("sync monitor stopped")
	return nil
}

// stopLocked cancels the connectivity check, the poll loop and any pending
// interval switch, and invalidates every outstanding callback.
func (s *Service) stopLocked() {
	if s.st.cycleCancel != nil {
		s.st.cycleCancel()
		s.st.cycleCancel = nil
	}
	s.stopLoopLocked()
	s.cancelSwitchLocked()
	s.st.generation++
}

func (s *Service) stopLoopLocked() {
	if s.st.loopCancel != nil {
		s.st.loopCancel()
		s.st.loopCancel = nil
	}
}

// failLocked ends the cycle with an error event.
func (s *Service) failLocked(kind progress.ErrorKind, err error) {
	s.stopLocked()
	s.st.state = StateIdle

	fields := []zap.Field{zap.String("kind", string(kind))}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Warn("sync progress cycle failed", fields...)

	s.metrics.RecordError(kind)
	s.publisher.Publish(progress.ErrorEvent(kind))
}

type nopRecorder struct{}

func (nopRecorder) RecordRefresh() {}
func (nopRecorder) RecordTick(progress.Snapshot) {}
func (nopRecorder) RecordError(progress.ErrorKind) {}
func (nopRecorder) RecordIntervalSwitch(time.Duration) {}
func (nopRecorder) RecordCompletion() {}
