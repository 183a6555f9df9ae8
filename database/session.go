package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	"github.com/gaborage/go-bricks-sql/database/types"
	"github.com/gaborage/go-bricks-sql/logger"
)

const defaultPrimaryKey = "id"

// SelectBuilder is a query the session can compile and run. Both *SelectQuery and
// *orm.Select implement it.
type SelectBuilder interface {
	Dialect() dialect.Dialect
	Compile() (*Statement, error)
	CountSQL() (string, error)
	ExistsSQL() (string, error)
}

type executor interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Session executes statements on a connection and drives at most one transaction at a time.
//
// A Session is not safe for concurrent use. Any statement failing inside a transaction
// rolls the transaction back before the error is returned; a failure of that rollback is
// joined into the returned error.
type Session struct {
	db          Interface
	tx          Tx
	qb          *QueryBuilder
	primaryKeys map[string]string
	logger      logger.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger used for transaction housekeeping messages.
func WithLogger(log logger.Logger) SessionOption {
	return func(s *Session) {
		s.logger = log
	}
}

// WithTables registers table schemas whose primary keys are used when writes have to
// fetch their rows back with a follow-up SELECT. Unregistered tables use "id".
func WithTables(tables ...types.TableSchema) SessionOption {
	return func(s *Session) {
		for _, t := range tables {
			pk := t.PrimaryKey()
			if pk == "" {
				continue
			}
			s.primaryKeys[t.TableName()] = pk
			if t.SchemaName() != "" {
				s.primaryKeys[t.SchemaName()+"."+t.TableName()] = pk
			}
		}
	}
}

// NewSession creates a session on db. The query dialect follows db.DatabaseType().
func NewSession(db Interface, opts ...SessionOption) (*Session, error) {
	qb, err := NewQueryBuilder(db.DatabaseType())
	if err != nil {
		return nil, err
	}
	s := &Session{
		db:          db,
		qb:          qb,
		primaryKeys: make(map[string]string),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying connection.
func (s *Session) DB() Interface {
	return s.db
}

// Builder returns a query builder for the session's database.
func (s *Session) Builder() *QueryBuilder {
	return s.qb
}

// InTransaction reports whether a transaction is active.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// Begin starts a transaction. Nested transactions are rejected with ErrTransactionState.
func (s *Session) Begin(ctx context.Context) error {
	return s.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with explicit options.
func (s *Session) BeginTx(ctx context.Context, opts *sql.TxOptions) error {
	if s.tx != nil {
		return fmt.Errorf("%w: a transaction is already active", types.ErrTransactionState)
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// Commit commits the active transaction.
func (s *Session) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("%w: commit without an active transaction", types.ErrTransactionState)
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls the active transaction back.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return fmt.Errorf("%w: rollback without an active transaction", types.ErrTransactionState)
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Transaction runs fn inside a new transaction and commits it when fn returns nil.
// The transaction is rolled back when fn fails or panics.
func (s *Session) Transaction(ctx context.Context, fn func(*Session) error) error {
	if err := s.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			if s.tx != nil {
				_ = s.Rollback()
			}
			panic(p)
		}
	}()

	if err := fn(s); err != nil {
		if s.tx == nil {
			return err
		}
		if rbErr := s.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if s.tx == nil {
		return fmt.Errorf("%w: transaction ended inside the callback", types.ErrTransactionState)
	}
	return s.Commit()
}

func (s *Session) executor() executor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// fail wraps a driver error with its SQL and aborts the active transaction.
func (s *Session) fail(query string, err error) error {
	return s.abort(&types.QueryError{SQL: query, Err: err})
}

// abort rolls the active transaction back after a failed statement.
func (s *Session) abort(err error) error {
	if s.tx == nil {
		return err
	}
	tx := s.tx
	s.tx = nil
	if rbErr := tx.Rollback(); rbErr != nil {
		s.logger.Warn().Err(rbErr).Msg("Automatic rollback after failed statement failed")
		return errors.Join(err, fmt.Errorf("automatic rollback failed: %w", rbErr))
	}
	s.logger.Debug().Msg("Rolled back transaction after failed statement")
	return err
}

// Exec executes a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := s.executor().Exec(ctx, query, args...)
	if err != nil {
		return nil, s.fail(query, err)
	}
	return result, nil
}

// Query executes a statement and returns every row as a column name to value map.
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	_, rows, err := s.query(ctx, query, args...)
	return rows, err
}

// QueryValue returns the first column of the first row, or nil when there are no rows.
func (s *Session) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	cols, rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(cols) == 0 {
		return nil, nil
	}
	return rows[0][cols[0]], nil
}

func (s *Session) query(ctx context.Context, query string, args ...any) ([]string, []map[string]any, error) {
	rows, err := s.executor().Query(ctx, query, args...)
	if err != nil {
		return nil, nil, s.fail(query, err)
	}
	cols, result, err := scanRows(rows)
	if err != nil {
		return nil, nil, s.fail(query, err)
	}
	return cols, result, nil
}

// Select compiles q, runs it and nests join columns under their join names.
func (s *Session) Select(ctx context.Context, q SelectBuilder) ([]map[string]any, error) {
	if err := s.checkDialect(q); err != nil {
		return nil, err
	}
	stmt, err := q.Compile()
	if err != nil {
		return nil, err
	}
	rows, err := s.Query(ctx, stmt.SQL)
	if err != nil {
		return nil, err
	}
	return stmt.DenormalizeAll(rows), nil
}

// First runs q and returns its first denormalized row, or nil when nothing matches.
// q is run as built; callers wanting a single row from the database should set Limit(1).
func (s *Session) First(ctx context.Context, q SelectBuilder) (map[string]any, error) {
	rows, err := s.Select(ctx, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Count returns the number of rows q matches, ignoring its ordering and pagination.
func (s *Session) Count(ctx context.Context, q SelectBuilder) (int64, error) {
	if err := s.checkDialect(q); err != nil {
		return 0, err
	}
	query, err := q.CountSQL()
	if err != nil {
		return 0, err
	}
	value, err := s.QueryValue(ctx, query)
	if err != nil {
		return 0, err
	}
	return toInt64(value)
}

// Exists reports whether q matches any row.
func (s *Session) Exists(ctx context.Context, q SelectBuilder) (bool, error) {
	if err := s.checkDialect(q); err != nil {
		return false, err
	}
	query, err := q.ExistsSQL()
	if err != nil {
		return false, err
	}
	value, err := s.QueryValue(ctx, query)
	if err != nil {
		return false, err
	}
	return toBool(value)
}

func (s *Session) checkDialect(q SelectBuilder) error {
	if vendor := q.Dialect().Name(); vendor != s.qb.Vendor() {
		return fmt.Errorf("%w: query built for %s cannot run on %s", types.ErrUnsupportedByDialect, vendor, s.qb.Vendor())
	}
	return nil
}
