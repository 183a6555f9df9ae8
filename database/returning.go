package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gaborage/go-bricks-sql/database/types"
)

// WriteResult describes the outcome of an INSERT, UPDATE or DELETE.
type WriteResult struct {
	RowsAffected int64
	// LastInsertID is the first id generated by an INSERT, when the database reports one.
	LastInsertID int64
	// Rows holds the written rows when returning columns were requested.
	Rows []map[string]any
}

// Insert inserts rows into table. When returning columns are given, the inserted rows are
// returned: natively where the database supports RETURNING, otherwise by selecting the
// primary key range reported by the last insert id.
func (s *Session) Insert(ctx context.Context, table string, rows []map[string]any, returning ...string) (*WriteResult, error) {
	if len(returning) == 0 || s.qb.SupportsReturning() {
		query, args, err := s.qb.Insert(table, rows, returning...)
		if err != nil {
			return nil, err
		}
		return s.write(ctx, query, args, len(returning) > 0)
	}
	return s.emulateReturning(ctx, func(ctx context.Context) (*WriteResult, error) {
		return s.insertSelectBack(ctx, table, rows, returning)
	})
}

// Update sets values on the rows of table matching where. When returning columns are given,
// the updated rows are returned: natively where the database supports RETURNING, otherwise
// by selecting the matched primary keys before the update and the rows after it.
func (s *Session) Update(ctx context.Context, table string, values map[string]any, where types.Conditions, returning ...string) (*WriteResult, error) {
	if len(returning) == 0 || s.qb.SupportsReturning() {
		query, args, err := s.qb.Update(table, values, where, returning...)
		if err != nil {
			return nil, err
		}
		return s.write(ctx, query, args, len(returning) > 0)
	}
	return s.emulateReturning(ctx, func(ctx context.Context) (*WriteResult, error) {
		return s.updateSelectBack(ctx, table, values, where, returning)
	})
}

// Delete deletes the rows of table matching where. When returning columns are given, the
// deleted rows are returned: natively where the database supports RETURNING, otherwise by
// selecting them before the delete.
func (s *Session) Delete(ctx context.Context, table string, where types.Conditions, returning ...string) (*WriteResult, error) {
	if len(returning) == 0 || s.qb.SupportsReturning() {
		query, args, err := s.qb.Delete(table, where, returning...)
		if err != nil {
			return nil, err
		}
		return s.write(ctx, query, args, len(returning) > 0)
	}
	return s.emulateReturning(ctx, func(ctx context.Context) (*WriteResult, error) {
		return s.deleteSelectBack(ctx, table, where, returning)
	})
}

func (s *Session) write(ctx context.Context, query string, args []any, returnsRows bool) (*WriteResult, error) {
	if returnsRows {
		rows, err := s.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return &WriteResult{RowsAffected: int64(len(rows)), Rows: rows}, nil
	}

	result, err := s.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return newWriteResult(result), nil
}

func newWriteResult(result sql.Result) *WriteResult {
	wr := &WriteResult{}
	if n, err := result.RowsAffected(); err == nil {
		wr.RowsAffected = n
	}
	if id, err := result.LastInsertId(); err == nil {
		wr.LastInsertID = id
	}
	return wr
}

// emulateReturning runs fn in the active transaction, or in a transaction of its own so
// a mismatching follow-up SELECT leaves no partial write behind.
func (s *Session) emulateReturning(ctx context.Context, fn func(context.Context) (*WriteResult, error)) (*WriteResult, error) {
	if s.tx != nil {
		return fn(ctx)
	}
	var result *WriteResult
	err := s.Transaction(ctx, func(*Session) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Session) insertSelectBack(ctx context.Context, table string, rows []map[string]any, returning []string) (*WriteResult, error) {
	query, args, err := s.qb.Insert(table, rows)
	if err != nil {
		return nil, err
	}
	result, err := s.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	wr := newWriteResult(result)
	if wr.RowsAffected == 0 {
		return wr, nil
	}
	first, err := result.LastInsertId()
	if err != nil {
		return nil, s.abort(fmt.Errorf("insert into %s: last insert id unavailable: %w", table, err))
	}

	pk := s.primaryKey(table)
	q := s.qb.Select(table, returningColumns(returning)...).
		Where(types.Cond(pk+" BETWEEN", []int64{first, first + wr.RowsAffected - 1})).
		OrderBy(pk)
	if wr.Rows, err = s.selectBack(ctx, table, q, wr.RowsAffected); err != nil {
		return nil, err
	}
	return wr, nil
}

func (s *Session) updateSelectBack(ctx context.Context, table string, values map[string]any, where types.Conditions, returning []string) (*WriteResult, error) {
	pk := s.primaryKey(table)
	keyRows, err := s.selectRows(ctx, s.qb.Select(table, pk).Where(where...))
	if err != nil {
		return nil, err
	}

	query, args, err := s.qb.Update(table, values, where)
	if err != nil {
		return nil, err
	}
	result, err := s.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	wr := newWriteResult(result)
	if len(keyRows) == 0 {
		if wr.RowsAffected != 0 {
			return nil, s.abort(&types.ReturningMismatchError{Table: table, Expected: wr.RowsAffected})
		}
		wr.Rows = []map[string]any{}
		return wr, nil
	}

	keys := make([]any, len(keyRows))
	for i, row := range keyRows {
		keys[i] = row[pk]
	}
	q := s.qb.Select(table, returningColumns(returning)...).
		Where(types.Cond(pk, keys)).
		OrderBy(pk)
	if wr.Rows, err = s.selectBack(ctx, table, q, wr.RowsAffected); err != nil {
		return nil, err
	}
	return wr, nil
}

func (s *Session) deleteSelectBack(ctx context.Context, table string, where types.Conditions, returning []string) (*WriteResult, error) {
	rows, err := s.selectRows(ctx, s.qb.Select(table, returningColumns(returning)...).Where(where...))
	if err != nil {
		return nil, err
	}

	query, args, err := s.qb.Delete(table, where)
	if err != nil {
		return nil, err
	}
	result, err := s.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	wr := newWriteResult(result)
	if wr.RowsAffected != int64(len(rows)) {
		return nil, s.abort(&types.ReturningMismatchError{Table: table, Expected: wr.RowsAffected, Actual: int64(len(rows))})
	}
	wr.Rows = rows
	return wr, nil
}

// selectBack fetches written rows and checks their number against the affected row count.
func (s *Session) selectBack(ctx context.Context, table string, q *SelectQuery, expected int64) ([]map[string]any, error) {
	rows, err := s.selectRows(ctx, q)
	if err != nil {
		return nil, err
	}
	if int64(len(rows)) != expected {
		return nil, s.abort(&types.ReturningMismatchError{Table: table, Expected: expected, Actual: int64(len(rows))})
	}
	return rows, nil
}

func (s *Session) selectRows(ctx context.Context, q *SelectQuery) ([]map[string]any, error) {
	query, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, query)
}

func (s *Session) primaryKey(table string) string {
	if pk, ok := s.primaryKeys[table]; ok {
		return pk
	}
	return defaultPrimaryKey
}

// returningColumns maps RETURNING columns onto select columns; "*" selects every column.
func returningColumns(returning []string) []any {
	cols := make([]any, 0, len(returning))
	for _, c := range returning {
		if c == "*" {
			return nil
		}
		cols = append(cols, c)
	}
	return cols
}
