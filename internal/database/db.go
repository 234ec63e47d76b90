package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool *ConnectionPool
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies pool limits to db
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Open opens (creating if needed) the SQLite audit database at path and
// applies migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db, err := New(ctx, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	slog.Info("Audit database initialized", "path", path)
	return db, nil
}

// New wraps an open handle, pings it and applies migrations
func New(ctx context.Context, sqlDB *sql.DB) (*DB, error) {
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite serialises writers; one writer connection avoids SQLITE_BUSY
	db := &DB{
		DB:   sqlDB,
		pool: NewConnectionPool(sqlDB, 1, 1, 30*time.Minute),
	}

	if err := db.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS decision_audit (
		request_id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		data_source TEXT NOT NULL,
		risk_score REAL NOT NULL,
		risk_level TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		explanation_method TEXT NOT NULL,
		payload TEXT NOT NULL, -- RFC 8785 canonical JSON
		digest TEXT NOT NULL, -- hex SHA-256 of payload
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decision_audit_created ON decision_audit(created_at DESC)`,
	// append-only
	`CREATE TRIGGER IF NOT EXISTS decision_audit_no_update BEFORE UPDATE ON decision_audit
	BEGIN SELECT RAISE(ABORT, 'decision_audit is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS decision_audit_no_delete BEFORE DELETE ON decision_audit
	BEGIN SELECT RAISE(ABORT, 'decision_audit is append-only'); END`,
}

func (db *DB) migrate(ctx context.Context) error {
	for _, query := range migrations {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}
