// Package store provides the persistence gateway of the inventory backend.
//
// The engine never touches storage media directly; it runs every operation
// inside Gateway.WithTx and talks to the Tx it is handed. Two gateways exist:
// Store, backed by DuckDB, and MemStore, an in-process copy-on-write store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
)

// =============================================================================
// Store Configuration
// =============================================================================

// Config holds store configuration options.
type Config struct {
	// Path is the DuckDB database file. Empty opens an in-memory database.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration

	// QueryTimeout bounds a transaction started without a deadline.
	QueryTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:            config.DefaultDatabasePath,
		MaxOpenConns:    config.DefaultMaxOpenConns,
		MaxIdleConns:    4,
		ConnMaxLifetime: 5 * time.Minute,
		QueryTimeout:    config.DefaultQueryTimeout,
	}
}

// =============================================================================
// Store
// =============================================================================

// Store is the DuckDB-backed Gateway.
//
// Store is safe for concurrent use. Each transaction runs under DuckDB's
// snapshot isolation; structural changes additionally serialize on the
// hierarchy_lock row (see Tx.LockHierarchy).
type Store struct {
	db     *sql.DB
	config Config
	mu     sync.RWMutex
	closed bool
}

// New opens the database, verifies the connection and applies the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:     db,
		config: cfg,
	}

	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// DB returns the underlying database connection.
// Use with caution - prefer using WithTx.
func (s *Store) DB() *sql.DB {
	return s.db
}

// =============================================================================
// Transaction Support
// =============================================================================

// defaultContext applies config.QueryTimeout when ctx carries no deadline.
func (s *Store) defaultContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	timeout := s.config.QueryTimeout
	if timeout <= 0 {
		timeout = config.DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// TransactionContext executes fn within a database transaction.
//
// If fn returns an error, the transaction is rolled back. The context is
// checked again before commit so that a timed-out operation never commits.
func (s *Store) TransactionContext(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return fmt.Errorf("store is closed: %w", ErrDatabase)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("context cancelled before commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return mapSQLError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// WithTx implements Gateway.
func (s *Store) WithTx(ctx context.Context, fn func(Tx) error) error {
	ctx, cancel := s.defaultContext(ctx)
	defer cancel()

	return s.TransactionContext(ctx, func(tx *sql.Tx) error {
		return fn(&sqlTx{ctx: ctx, tx: tx})
	})
}

// =============================================================================
// Health Check
// =============================================================================

// Health checks database connectivity.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
