package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Database owns the SQLite connection used by the repositories. Opening it
// creates the parent directory and applies the embedded migrations.
//
// Usage:
//
//	database, err := Open(DefaultDatabaseConfig(cfg.DatabasePath()))
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	repo := NewRepository(database, nil)
type Database struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// DatabaseConfig holds configuration for Open.
type DatabaseConfig struct {
	// Path is the database file path
	Path string
	// ConnectionConfig allows customizing the SQLite connection; nil uses defaults
	ConnectionConfig *ConnectionConfig
}

// DefaultDatabaseConfig returns the defaults for path.
func DefaultDatabaseConfig(path string) DatabaseConfig {
	return DatabaseConfig{Path: path}
}

// Open creates the database file if needed, migrates it to the latest
// schema and returns the open Database.
func Open(config DatabaseConfig) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// golang-migrate closes the connection it is given, so it gets its own
	if err := migrateFromPath(config.Path, MigrateUp); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	connConfig := DefaultConnectionConfig(config.Path)
	if config.ConnectionConfig != nil {
		connConfig = *config.ConnectionConfig
		connConfig.Path = config.Path
	}

	conn, err := NewSQLiteConnection(connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	return &Database{db: conn, path: config.Path}, nil
}

// Version returns the applied schema version.
func (d *Database) Version() (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := migrateFromPath(d.path, func(conn *sql.DB) error {
		var err error
		version, dirty, err = MigrationVersion(conn)
		return err
	})
	return version, dirty, err
}

// DB returns the underlying connection. Do not close it directly.
func (d *Database) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Ping verifies the connection is alive. Used by the health endpoint.
func (d *Database) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return errClosed
	}
	return d.db.PingContext(ctx)
}

// Close closes the connection. Further calls are no-ops.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.db = nil
	return nil
}

// conn returns the live connection or errClosed.
func (d *Database) conn() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, errClosed
	}
	return d.db, nil
}
