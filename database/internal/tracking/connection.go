package tracking

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/gaborage/go-bricks-sql/config"
	"github.com/gaborage/go-bricks-sql/database/types"
	"github.com/gaborage/go-bricks-sql/logger"
)

// Connection wraps types.Interface and tracks every statement it executes.
type Connection struct {
	conn types.Interface
	tc   Context
}

var _ types.Interface = (*Connection)(nil)

// NewConnection wraps conn. The vendor comes from conn.DatabaseType() and the
// tracking settings from cfg.
func NewConnection(conn types.Interface, log logger.Logger, cfg *config.DatabaseConfig) *Connection {
	return &Connection{
		conn: conn,
		tc: Context{
			Logger:   log,
			Vendor:   conn.DatabaseType(),
			Settings: NewSettings(cfg),
		},
	}
}

// SetServerInfo sets the server metadata reported on spans.
func (c *Connection) SetServerInfo(address string, port int, namespace string) {
	c.tc.ServerAddress = address
	c.tc.ServerPort = port
	c.tc.Namespace = namespace
}

// Unwrap returns the wrapped connection.
func (c *Connection) Unwrap() types.Interface {
	return c.conn
}

// Query executes a query with performance tracking
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.conn.Query(ctx, query, args...)
	TrackDBOperation(ctx, &c.tc, query, args, start, 0, err)
	return rows, err
}

// QueryRow executes a single row query; tracking happens on Scan.
func (c *Connection) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	start := time.Now()
	return trackRow(ctx, &c.tc, c.conn.QueryRow(ctx, query, args...), query, args, start)
}

// Exec executes a statement with performance tracking
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := c.conn.Exec(ctx, query, args...)
	TrackDBOperation(ctx, &c.tc, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// Begin starts a tracked transaction
func (c *Connection) Begin(ctx context.Context) (types.Tx, error) {
	return c.BeginTx(ctx, nil)
}

// BeginTx starts a tracked transaction with options. Every statement of the
// transaction carries the same transaction id.
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (types.Tx, error) {
	start := time.Now()
	var (
		tx  types.Tx
		err error
	)
	if opts == nil {
		tx, err = c.conn.Begin(ctx)
	} else {
		tx, err = c.conn.BeginTx(ctx, opts)
	}

	txc := c.tc
	txc.TxID = newTxID()
	TrackDBOperation(ctx, &txc, opBegin, nil, start, 0, err)
	if err != nil {
		return nil, err
	}
	return newTransaction(ctx, tx, txc), nil
}

// Health checks database connection health (no tracking needed)
func (c *Connection) Health(ctx context.Context) error {
	return c.conn.Health(ctx)
}

// Stats returns database connection statistics (no tracking needed)
func (c *Connection) Stats() (map[string]any, error) {
	return c.conn.Stats()
}

// Close closes the database connection (no tracking needed)
func (c *Connection) Close() error {
	return c.conn.Close()
}

// DatabaseType returns the database type (no tracking needed)
func (c *Connection) DatabaseType() string {
	return c.conn.DatabaseType()
}

// pendingRow records a QueryRow statement once its outcome is known: on Scan, or on an
// Err call that reports a failure.
type pendingRow struct {
	types.Row

	ctx   context.Context
	tc    *Context
	query string
	args  []any
	start time.Time
	once  sync.Once
}

func trackRow(ctx context.Context, tc *Context, row types.Row, query string, args []any, start time.Time) types.Row {
	if row == nil {
		return nil
	}
	return &pendingRow{Row: row, ctx: ctx, tc: tc, query: query, args: args, start: start}
}

func (r *pendingRow) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	r.record(err)
	return err
}

func (r *pendingRow) Err() error {
	err := r.Row.Err()
	if err != nil {
		r.record(err)
	}
	return err
}

func (r *pendingRow) record(err error) {
	r.once.Do(func() {
		TrackDBOperation(r.ctx, r.tc, r.query, r.args, r.start, 0, err)
	})
}
