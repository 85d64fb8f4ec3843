// Package wallet loads wallet balances from the node once it has synced and
// keeps the latest result in memory and in the local database.
package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"syncmonitor/db"
	"syncmonitor/logging"
	"syncmonitor/nodeapi"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLoadTimeout bounds a single balance load.
const DefaultLoadTimeout = 30 * time.Second

// BalanceAPI fetches balances from the node. *nodeapi.Client implements it.
type BalanceAPI interface {
	Balances(ctx context.Context) ([]nodeapi.Balance, error)
}

// Store persists balances and the refresh log. *db.Repository implements it.
type Store interface {
	ReplaceBalances(ctx context.Context, records []db.BalanceRecord) error
	InsertRefresh(ctx context.Context, rec db.RefreshRecord) (int64, error)
}

// ErrNilAPI indicates the balance API is nil.
var ErrNilAPI = errors.New("wallet: balance API cannot be nil")

// Config configures a Refresher.
type Config struct {
	// LoadTimeout bounds each balance load (default DefaultLoadTimeout)
	LoadTimeout time.Duration

	// OnLoaded is called after every successful load (optional). It runs on
	// the load goroutine.
	OnLoaded func(snap Snapshot)
}

// Snapshot is the result of the last successful load.
type Snapshot struct {
	Balances []nodeapi.Balance `json:"balances"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// Refresher loads balances in the background. Only the most recent load is
// live: starting a new one or calling CancelPendingRefresh cancels the
// previous one, and a cancelled load never replaces the stored result.
//
// LoadBalances and CancelPendingRefresh never block, so Refresher can be
// used as a blockchain.BalanceRefresher.
type Refresher struct {
	api    BalanceAPI
	store  Store
	cfg    Config
	logger *logging.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	latest  *Snapshot
	lastErr error

	wg sync.WaitGroup
}

// NewRefresher creates a Refresher. store and logger may be nil.
func NewRefresher(api BalanceAPI, store Store, cfg Config, logger *logging.Logger) (*Refresher, error) {
	if api == nil {
		return nil, ErrNilAPI
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		api:        api,
		store:      store,
		cfg:        cfg,
		logger:     logger.Named("wallet"),
		baseCtx:    ctx,
		baseCancel: cancel,
	}, nil
}

// LoadBalances starts a balance load and returns immediately. A load already
// in flight is cancelled.
func (r *Refresher) LoadBalances() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.baseCtx.Err() != nil {
		return
	}

	r.cancelLocked()
	r.gen++

	ctx, cancel := context.WithTimeout(r.baseCtx, r.cfg.LoadTimeout)
	r.cancel = cancel

	refreshID := uuid.New().String()
	r.logger.Info("loading wallet balances", zap.String("refresh_id", refreshID))

	r.wg.Add(1)
	go r.load(ctx, cancel, r.gen, refreshID)
}

// CancelPendingRefresh cancels the in-flight load, if any.
func (r *Refresher) CancelPendingRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
}

func (r *Refresher) cancelLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
		r.gen++
	}
}

func (r *Refresher) load(ctx context.Context, cancel context.CancelFunc, gen uint64, refreshID string) {
	defer r.wg.Done()
	defer cancel()

	start := time.Now()
	balances, err := r.api.Balances(ctx)
	duration := time.Since(start)

	rec := db.RefreshRecord{
		RefreshID:   refreshID,
		WalletCount: len(balances),
		DurationMS:  duration.Milliseconds(),
	}
	log := r.logger.With(zap.String("refresh_id", refreshID), zap.Duration("duration", duration))

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		rec.Status = db.RefreshStatusCancelled
		log.Debug("balance load cancelled")
	case err != nil:
		rec.Status = db.RefreshStatusError
		rec.ErrorMessage = err.Error()
		log.Warn("balance load failed", zap.Error(err))
	default:
		rec.Status = db.RefreshStatusSuccess
		if !r.commit(ctx, gen, balances, log) {
			rec.Status = db.RefreshStatusCancelled
		}
	}

	r.mu.Lock()
	if gen == r.gen {
		r.cancel = nil
		if rec.Status == db.RefreshStatusError {
			r.lastErr = err
		}
	}
	r.mu.Unlock()

	r.recordRefresh(rec, log)
}

// commit stores a successful load unless it has been superseded.
func (r *Refresher) commit(ctx context.Context, gen uint64, balances []nodeapi.Balance, log *logging.Logger) bool {
	if !r.isCurrent(gen) {
		log.Debug("balance load superseded")
		return false
	}

	if r.store != nil {
		now := time.Now()
		records := make([]db.BalanceRecord, 0, len(balances))
		for _, b := range balances {
			records = append(records, db.BalanceRecord{
				Wallet:         b.Wallet,
				ConfirmedCoins: b.Confirmed.Coins,
				ConfirmedHours: b.Confirmed.Hours,
				PredictedCoins: b.Predicted.Coins,
				PredictedHours: b.Predicted.Hours,
				FetchedAt:      now,
			})
		}
		if err := r.store.ReplaceBalances(ctx, records); err != nil {
			// the in-memory copy is still updated
			log.Warn("failed to persist wallet balances", zap.Error(err))
		}
	}

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		log.Debug("balance load superseded")
		return false
	}
	snap := Snapshot{Balances: balances, LoadedAt: time.Now()}
	r.latest = &snap
	r.lastErr = nil
	r.mu.Unlock()

	log.Info("wallet balances loaded", zap.Int("wallets", len(balances)))
	if r.cfg.OnLoaded != nil {
		r.cfg.OnLoaded(snap)
	}
	return true
}

func (r *Refresher) isCurrent(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen == r.gen
}

func (r *Refresher) recordRefresh(rec db.RefreshRecord, log *logging.Logger) {
	if r.store == nil {
		return
	}
	// the load context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := r.store.InsertRefresh(ctx, rec); err != nil {
		log.Warn("failed to record balance refresh", zap.Error(err))
	}
}

// Balances returns the result of the last successful load, or nil if there
// has been none.
func (r *Refresher) Balances() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return nil
	}
	cp := *r.latest
	cp.Balances = append([]nodeapi.Balance(nil), r.latest.Balances...)
	return &cp
}

// LastError returns the error of the most recent failed load. It is cleared
// by the next successful one.
func (r *Refresher) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Loading reports whether a load is in flight.
func (r *Refresher) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Close cancels any in-flight load and waits for it to finish.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.baseCancel()
	r.cancelLocked()
	r.mu.Unlock()

	r.wg.Wait()
}
