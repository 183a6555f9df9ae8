//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"context"
	"database/sql"
)

// Querier defines the query execution operations.
//
// Querier is designed for easy mocking in unit tests. Most business logic only needs query
// execution capabilities; transactions are driven by the Session through Transactor.
type Querier interface {
	// Query executes a SQL query that returns rows, typically a SELECT statement.
	// The caller is responsible for closing the returned rows.
	//
	// Statements rendered by the query builder have every value inlined as a quoted
	// literal, so args is normally empty. DML rendered through squirrel uses
	// vendor-specific placeholders:
	//   - PostgreSQL: $1, $2, $3
	//   - MySQL: ?
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// QueryRow executes a SQL query that is expected to return at most one row.
	// Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, query string, args ...any) Row

	// Exec executes a SQL statement that doesn't return rows, typically INSERT, UPDATE, or DELETE.
	// The returned sql.Result provides RowsAffected and LastInsertId (if supported by the vendor).
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)

	// DatabaseType returns the vendor identifier for this database connection.
	// Valid values are defined as constants: PostgreSQL, MySQL.
	DatabaseType() string
}
