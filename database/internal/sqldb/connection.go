// Package sqldb implements types.Interface over database/sql for the vendor packages.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gaborage/go-bricks-sql/config"
	"github.com/gaborage/go-bricks-sql/database/types"
	"github.com/gaborage/go-bricks-sql/logger"
)

const (
	connectTimeout = 10 * time.Second
	healthTimeout  = 5 * time.Second
)

// Ping is replaced in tests
var Ping = func(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}

// Connection implements types.Interface over a *sql.DB pool.
type Connection struct {
	db     *sql.DB
	vendor string
	logger logger.Logger
}

var _ types.Interface = (*Connection)(nil)

// New wraps an already opened pool.
func New(db *sql.DB, vendor string, log logger.Logger) *Connection {
	return &Connection{db: db, vendor: vendor, logger: log}
}

// Open applies the pool settings to db and pings it. db is closed when the ping fails.
func Open(db *sql.DB, vendor string, pool *config.PoolConfig, log logger.Logger) (*Connection, error) {
	if pool != nil {
		ConfigurePool(db, pool)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := Ping(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("vendor", vendor).Msg("Failed to close database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping %s database: %w", vendor, err)
	}

	return New(db, vendor, log), nil
}

// ConfigurePool applies pool limits. Zero values leave the database/sql defaults.
func ConfigurePool(db *sql.DB, pool *config.PoolConfig) {
	if pool.Max.Connections > 0 {
		db.SetMaxOpenConns(int(pool.Max.Connections))
	}
	if pool.Idle.Connections > 0 {
		db.SetMaxIdleConns(int(pool.Idle.Connections))
	}
	if pool.Idle.Time > 0 {
		db.SetConnMaxIdleTime(pool.Idle.Time)
	}
	if pool.Lifetime.Max > 0 {
		db.SetConnMaxLifetime(pool.Lifetime.Max)
	}
}

// DB returns the underlying pool
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Query executes a query that returns rows
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row
func (c *Connection) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(c.db.QueryRowContext(ctx, query, args...))
}

// Exec executes a statement without returning any rows
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// Begin starts a transaction
func (c *Connection) Begin(ctx context.Context) (types.Tx, error) {
	return c.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (types.Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

// Health checks database connectivity
func (c *Connection) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return Ping(ctx, c.db)
}

// Stats returns database connection statistics
func (c *Connection) Stats() (map[string]any, error) {
	stats := c.db.Stats()
	return map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_idle_time_closed": stats.MaxIdleTimeClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}, nil
}

// Close closes the pool
func (c *Connection) Close() error {
	c.logger.Info().Str("vendor", c.vendor).Msg("Closing database connection")
	return c.db.Close()
}

// DatabaseType returns the vendor identifier
func (c *Connection) DatabaseType() string {
	return c.vendor
}

// Transaction wraps sql.Tx to implement types.Tx
type Transaction struct {
	tx *sql.Tx
}

// Query executes a query within the transaction
func (t *Transaction) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row within the transaction
func (t *Transaction) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	return types.NewRowFromSQL(t.tx.QueryRowContext(ctx, query, args...))
}

// Exec executes a statement within the transaction
func (t *Transaction) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// Commit commits the transaction
func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}
