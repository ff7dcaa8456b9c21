package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqlite busy result code surfaced by the driver when the database is locked.
const sqliteBusyCode = 5

const (
	busyRetryAttempts  = 6
	busyRetryBaseDelay = 10 * time.Millisecond
	busyRetryMaxDelay  = 200 * time.Millisecond
	timeFormat         = time.RFC3339Nano
	defaultBusyTimeout = 5000
)

// Store persists queue items in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the queue database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)", path, defaultBusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}

	// A single writer avoids most lock contention with WAL readers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping queue database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		code := coder.Code()
		return code == sqliteBusyCode || code == sqliteBusyCode+1
	}
	return false
}

func retryDelay(attempt int) time.Duration {
	delay := busyRetryBaseDelay << attempt
	if delay > busyRetryMaxDelay {
		return busyRetryMaxDelay
	}
	return delay
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return result, nil
		}
		if !isBusy(err) {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay(attempt)):
		}
	}
	return nil, fmt.Errorf("database busy after %d attempts: %w", busyRetryAttempts, lastErr)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) queryWithRetry(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if !isBusy(err) {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay(attempt)):
		}
	}
	return nil, fmt.Errorf("database busy after %d attempts: %w", busyRetryAttempts, lastErr)
}
