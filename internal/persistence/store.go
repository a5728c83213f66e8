// Package persistence is the document store for users, chats, dedup
// markers, and sessions, backed by SQLite. Each "collection"
// is a table; JSON columns hold the nested free-form bags (chat
// user_timezones, session context) the way a real document store would,
// while the fields the app queries by (platform, ids, status, expiry) are
// first-class indexed columns.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaVersion = 1

// Store wraps the sqlite connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns ~/.tzwatch/tzwatch.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".tzwatch", "tzwatch.db")
}

// Open opens (creating if needed) the sqlite-backed store at path and
// applies schema migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultDBPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.configurePragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// DB exposes the underlying *sql.DB for maintenance sweeps and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
	}
	for _, q := range pragmas {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			platform TEXT NOT NULL,
			user_id TEXT NOT NULL,
			tz_iana TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'default',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_verified_at TIMESTAMP,
			PRIMARY KEY (platform, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chats (
			platform TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			default_tz TEXT NOT NULL DEFAULT '',
			user_timezones TEXT NOT NULL DEFAULT '{}',
			active_timezones TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (platform, chat_id)
		);`,
		`CREATE TABLE IF NOT EXISTS dedupe_events (
			platform TEXT NOT NULL,
			event_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (platform, event_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dedupe_created_at ON dedupe_events(created_at);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			goal TEXT NOT NULL,
			status TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		);`,
		// Enforces "at most one ACTIVE session per (platform,chat,user)" at
		// the storage layer via a partial unique index.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_unique
			ON sessions(platform, chat_id, user_id)
			WHERE status = 'ACTIVE';`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO schema_migrations (version) VALUES (?);
	`, schemaVersion); err != nil {
		return fmt.Errorf("insert schema migration ledger: %w", err)
	}

	return tx.Commit()
}

// retryOnBusy retries f when SQLite returns BUSY/LOCKED, with bounded
// jittered backoff, to absorb brief writer contention under concurrent
// webhook handling.
func retryOnBusy(ctx context.Context, maxRetries int, f func() error) error {
	const baseDelay = 25 * time.Millisecond
	const maxDelay = 250 * time.Millisecond

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = f()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		delay := baseDelay << uint(attempt)
		if delay > maxDelay {
			delay = maxDelay
		}
		jitter := time.Duration(rand.IntN(int(delay/2) + 1))
		delay = delay - delay/4 + jitter

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "(5)") ||
		strings.Contains(msg, "(6)")
}

// ErrNotFound is returned by single-row lookups that found nothing; callers
// treat it as "state absent" and fail soft rather than erroring the request.
var ErrNotFound = sql.ErrNoRows
