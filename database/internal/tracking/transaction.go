package tracking

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/gaborage/go-bricks-sql/database/types"
)

// Transaction wraps types.Tx and tracks its statements under one transaction id.
type Transaction struct {
	tx  types.Tx
	tc  Context
	ctx context.Context
}

var _ types.Tx = (*Transaction)(nil)

func newTxID() string {
	return uuid.NewString()
}

// newTransaction wraps tx. ctx is the context the transaction was started with; Commit
// and Rollback take none, so their spans are parented to it.
func newTransaction(ctx context.Context, tx types.Tx, tc Context) *Transaction {
	return &Transaction{tx: tx, tc: tc, ctx: context.WithoutCancel(ctx)}
}

// ID returns the transaction correlation id
func (tx *Transaction) ID() string {
	return tx.tc.TxID
}

// Query executes a query within the transaction with performance tracking
func (tx *Transaction) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := tx.tx.Query(ctx, query, args...)
	TrackDBOperation(ctx, &tx.tc, query, args, start, 0, err)
	return rows, err
}

// QueryRow executes a single row query within the transaction; tracking happens on Scan.
func (tx *Transaction) QueryRow(ctx context.Context, query string, args ...any) types.Row {
	start := time.Now()
	return trackRow(ctx, &tx.tc, tx.tx.QueryRow(ctx, query, args...), query, args, start)
}

// Exec executes a statement within the transaction with performance tracking
func (tx *Transaction) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := tx.tx.Exec(ctx, query, args...)
	TrackDBOperation(ctx, &tx.tc, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// Commit commits the transaction
func (tx *Transaction) Commit() error {
	start := time.Now()
	err := tx.tx.Commit()
	TrackDBOperation(tx.ctx, &tx.tc, opCommit, nil, start, 0, err)
	return err
}

// Rollback rolls back the transaction
func (tx *Transaction) Rollback() error {
	start := time.Now()
	err := tx.tx.Rollback()
	TrackDBOperation(tx.ctx, &tx.tc, opRollback, nil, start, 0, err)
	return err
}
