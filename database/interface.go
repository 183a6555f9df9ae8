package database

import (
	"github.com/gaborage/go-bricks-sql/database/internal/builder"
	"github.com/gaborage/go-bricks-sql/database/types"
)

// Interface defines the connection contract the session executes statements through.
// The interfaces live in the database/types package to avoid import cycles.
type Interface = types.Interface

// Tx defines the interface for database transactions.
type Tx = types.Tx

// Row defines a single-row result with deferred errors.
type Row = types.Row

// SelectQuery is a composable SELECT builder. It is not safe for concurrent use;
// Clone it before handing it to another goroutine.
type SelectQuery = builder.SelectQuery

// Statement is a compiled SELECT together with the data needed to denormalize its rows.
type Statement = builder.Statement
