// Package database executes queries built by the query builder against PostgreSQL and MySQL.
package database

import (
	"github.com/gaborage/go-bricks-sql/database/internal/builder"
	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	"github.com/gaborage/go-bricks-sql/database/orm"
	"github.com/gaborage/go-bricks-sql/database/types"
)

// QueryBuilder provides vendor-specific SQL query building.
type QueryBuilder struct {
	dialect dialect.Dialect
	dml     *builder.DML
}

// NewQueryBuilder creates a new query builder for the specified database vendor.
func NewQueryBuilder(vendor string) (*QueryBuilder, error) {
	d, err := dialect.For(vendor)
	if err != nil {
		return nil, err
	}
	return &QueryBuilder{dialect: d, dml: builder.NewDML(d)}, nil
}

// Vendor returns the database vendor the builder renders for.
func (qb *QueryBuilder) Vendor() string {
	return qb.dialect.Name()
}

// Select starts a SELECT on table ("table" or "schema.table").
// Columns default to every column of the table plus the columns declared by joins.
func (qb *QueryBuilder) Select(table string, cols ...any) *SelectQuery {
	return builder.NewSelect(qb.dialect, table, cols...)
}

// SelectFrom starts a relationship-aware SELECT on a table schema.
func (qb *QueryBuilder) SelectFrom(table types.TableSchema, cols ...any) *orm.Select {
	return orm.NewSelect(qb.dialect, table, cols...)
}

// Insert renders a multi-row INSERT with the vendor's placeholders.
// returning is only supported where the database has a native RETURNING clause.
func (qb *QueryBuilder) Insert(table string, rows []map[string]any, returning ...string) (string, []any, error) {
	return qb.dml.Insert(table, rows, returning...)
}

// Update renders an UPDATE of the rows matching where.
func (qb *QueryBuilder) Update(table string, values map[string]any, where types.Conditions, returning ...string) (string, []any, error) {
	return qb.dml.Update(table, values, where, returning...)
}

// Delete renders a DELETE of the rows matching where.
func (qb *QueryBuilder) Delete(table string, where types.Conditions, returning ...string) (string, []any, error) {
	return qb.dml.Delete(table, where, returning...)
}

// QuoteIdentifier quotes an identifier; dotted names are quoted per part.
func (qb *QueryBuilder) QuoteIdentifier(name string) string {
	return qb.dialect.QuoteIdentifier(name)
}

// QuoteLiteral renders value as a SQL literal.
func (qb *QueryBuilder) QuoteLiteral(value any) (string, error) {
	return qb.dialect.QuoteValue(value)
}

// SupportsReturning reports whether writes can return rows without a follow-up SELECT.
func (qb *QueryBuilder) SupportsReturning() bool {
	return qb.dialect.SupportsReturning()
}
