// Package db stores the wallet balance cache and the balance refresh log in
// SQLite.
package db

import (
	"database/sql"
	"fmt"
	"time"

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"
)

// ConnectionConfig holds configuration for SQLite connections.
type ConnectionConfig struct {
	// Path is the database file path
	Path string
	// BusyTimeout is how long to wait for locks
	BusyTimeout time.Duration
	// MaxOpenConns limits concurrent connections (SQLite prefers a single writer)
	MaxOpenConns int
	// JournalMode is "WAL" unless overridden
	JournalMode string
}

// DefaultConnectionConfig returns WAL mode with a single writer.
func DefaultConnectionConfig(path string) ConnectionConfig {
	return ConnectionConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		JournalMode:  "WAL",
	}
}

// NewSQLiteConnection opens path and applies the pragmas from config.
//
// Example:
//
//	conn, err := NewSQLiteConnection(DefaultConnectionConfig("./data/syncmonitor.db"))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
func NewSQLiteConnection(config ConnectionConfig) (*sql.DB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 1
	}

	conn, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// pool settings first so the pragmas land on the one connection
	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxOpenConns)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := applyPragmas(conn, config); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func applyPragmas(conn *sql.DB, config ConnectionConfig) error {
	pragmas := []struct {
		name  string
		query string
	}{
		{"journal_mode", fmt.Sprintf("PRAGMA journal_mode=%s", config.JournalMode)},
		{"busy_timeout", fmt.Sprintf("PRAGMA busy_timeout=%d", config.BusyTimeout.Milliseconds())},
		{"foreign_keys", "PRAGMA foreign_keys=ON"},
	}

	for _, p := range pragmas {
		if _, err := conn.Exec(p.query); err != nil {
			return fmt.Errorf("failed to set %s pragma: %w", p.name, err)
		}
	}
	return nil
}

// JournalMode reports the active journal mode, lower-cased by SQLite.
func JournalMode(conn *sql.DB) (string, error) {
	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return "", fmt.Errorf("failed to read journal mode: %w", err)
	}
	return mode, nil
}
