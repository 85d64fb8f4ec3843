package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var errClosed = errors.New("database connection is closed")

// Refresh statuses recorded in balance_refreshes.
const (
	RefreshStatusSuccess   = "success"
	RefreshStatusError     = "error"
	RefreshStatusCancelled = "cancelled"
)

// BalanceRecord is one row of wallet_balances.
type BalanceRecord struct {
	Wallet         string
	ConfirmedCoins uint64
	ConfirmedHours uint64
	PredictedCoins uint64
	PredictedHours uint64
	FetchedAt      time.Time
}

// RefreshRecord is one row of balance_refreshes: the outcome of a single
// balance load.
type RefreshRecord struct {
	ID           int64     `json:"id"`                      // Auto-incremented primary key
	RefreshID    string    `json:"refresh_id"`              // Identifier shared with the refresher's log lines
	Status       string    `json:"status"`                  // success, error or cancelled
	WalletCount  int       `json:"wallet_count"`            // Wallets returned by the node
	DurationMS   int64     `json:"duration_ms"`             // Fetch duration
	ErrorMessage string    `json:"error_message,omitempty"` // Set when Status is error
	CreatedAt    time.Time `json:"created_at"`              // When the refresh finished
}

// Repository reads and writes the balance tables.
//
// The refresh log can be written through an AsyncWriter; balances are always
// written synchronously in one transaction.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a Repository. asyncWriter is optional.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{db: db, asyncWriter: asyncWriter}
}

// ReplaceBalances swaps the cached balances for records. Wallets missing
// from records are removed.
func (r *Repository) ReplaceBalances(ctx context.Context, records []BalanceRecord) error {
	conn, err := r.db.conn()
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM wallet_balances"); err != nil {
		return fmt.Errorf("failed to clear wallet balances: %w", err)
	}

	const query = `
		INSERT INTO wallet_balances (
			wallet, confirmed_coins, confirmed_hours,
			predicted_coins, predicted_hours, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, query,
			rec.Wallet,
			int64(rec.ConfirmedCoins),
			int64(rec.ConfirmedHours),
			int64(rec.PredictedCoins),
			int64(rec.PredictedHours),
			rec.FetchedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert balance for %s: %w", rec.Wallet, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit balances: %w", err)
	}
	return nil
}

// ListBalances returns the cached balances ordered by wallet name.
func (r *Repository) ListBalances(ctx context.Context) ([]BalanceRecord, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT wallet, confirmed_coins, confirmed_hours,
		       predicted_coins, predicted_hours, fetched_at
		FROM wallet_balances
		ORDER BY wallet`)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet balances: %w", err)
	}
	defer rows.Close()

	var records []BalanceRecord
	for rows.Next() {
		var (
			rec                    BalanceRecord
			cc, ch, pc, ph, atMill int64
		)
		if err := rows.Scan(&rec.Wallet, &cc, &ch, &pc, &ph, &atMill); err != nil {
			return nil, fmt.Errorf("failed to scan wallet balance row: %w", err)
		}
		rec.ConfirmedCoins = uint64(cc)
		rec.ConfirmedHours = uint64(ch)
		rec.PredictedCoins = uint64(pc)
		rec.PredictedHours = uint64(ph)
		rec.FetchedAt = time.UnixMilli(atMill)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet balance rows: %w", err)
	}
	return records, nil
}

// InsertRefresh records a refresh outcome. If an async writer is running the
// write is queued and 0 is returned; a full queue falls back to a direct
// write.
func (r *Repository) InsertRefresh(ctx context.Context, rec RefreshRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if r.asyncWriter != nil && r.asyncWriter.IsStarted() {
		if r.asyncWriter.Write(rec) {
			return 0, nil
		}
	}

	return r.insertRefresh(ctx, rec)
}

func (r *Repository) insertRefresh(ctx context.Context, rec RefreshRecord) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}

	result, err := conn.ExecContext(ctx, `
		INSERT INTO balance_refreshes (
			refresh_id, status, wallet_count, duration_ms, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RefreshID,
		rec.Status,
		rec.WalletCount,
		rec.DurationMS,
		nullString(rec.ErrorMessage),
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert balance refresh: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// RecentRefreshes returns the latest refresh records, newest first.
func (r *Repository) RecentRefreshes(ctx context.Context, limit int) ([]RefreshRecord, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT id, refresh_id, status, wallet_count, duration_ms,
		       COALESCE(error_message, ''), created_at
		FROM balance_refreshes
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance refreshes: %w", err)
	}
	defer rows.Close()

	var records []RefreshRecord
	for rows.Next() {
		var (
			rec    RefreshRecord
			atMill int64
		)
		err := rows.Scan(&rec.ID, &rec.RefreshID, &rec.Status, &rec.WalletCount,
			&rec.DurationMS, &rec.ErrorMessage, &atMill)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance refresh row: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(atMill)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance refresh rows: %w", err)
	}
	return records, nil
}

// CountRefreshes returns the number of recorded refreshes.
func (r *Repository) CountRefreshes(ctx context.Context) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM balance_refreshes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count balance refreshes: %w", err)
	}
	return count, nil
}

// CreateAsyncWriteHandler returns the WriteHandler that applies queued
// RefreshRecords.
func (r *Repository) CreateAsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		rec, ok := op.Data.(RefreshRecord)
		if !ok {
			return fmt.Errorf("invalid operation type: expected RefreshRecord, got %T", op.Data)
		}
		_, err := r.insertRefresh(context.Background(), rec)
		return err
	}
}

// nullString stores an empty string as NULL.
func nullString(s string) interface{} {
	if s == "" {
		return sql.NullString{}
	}
	return s
}
