// Package store implements C5: ScreenSearch's embedded relational
// store — schema, migrations, connection pool, lexical full-text
// index, tag graph, settings singleton, and embedding rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a pooled SQLite connection implementing C5's contract.
type Store struct {
	db *sql.DB
}

// Config configures the connection pool and pragmas applied on open.
type Config struct {
	Path              string
	MaxOpenConns      int
	MaxIdleConns      int
	AcquireTimeout    time.Duration
	CacheSizeKB       int // negative = KB of cache, per SQLite convention
}

// DefaultConfig returns conservative pool settings for a single-process
// desktop deployment.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		MaxOpenConns:   8,
		MaxIdleConns:   4,
		AcquireTimeout: 5 * time.Second,
		CacheSizeKB:    -20000,
	}
}

// Open opens (creating if needed) the SQLite store at cfg.Path, applies
// pragmas, and runs all pending migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA cache_size = %d", cfg.CacheSizeKB),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying pool for components that need an explicit
// transaction.
func (s *Store) DB() *sql.DB { return s.db }

func acquireCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
