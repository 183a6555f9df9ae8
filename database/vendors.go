package database

import "github.com/gaborage/go-bricks-sql/database/types"

// Re-export database vendor identifiers so callers of the database package do not need
// to import types while the single source of truth lives there.
const (
	PostgreSQL = types.PostgreSQL
	MySQL      = types.MySQL
)
