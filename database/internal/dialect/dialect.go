// Package dialect provides the vendor profiles used by the query builder: identifier
// quoting, literal encoding, JSON path lowering, operator rewriting and the
// capabilities that decide how RETURNING-like data is fetched.
package dialect

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/squirrel"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// JSONStep is one segment of a JSON path selector ("data->'a'->>'b'" has two steps).
type JSONStep struct {
	Operator string // one of ->, ->>, #>, #>>
	Key      string // unquoted key, index, or {a,b} path for #> operators
}

// Dialect describes a database family.
// Profiles are process-wide, immutable values obtained through For.
type Dialect interface {
	// Name returns the vendor identifier.
	Name() dbtypes.Vendor

	// QuoteIdentifier quotes an identifier. Dotted names ("schema.table") are quoted per part.
	QuoteIdentifier(name string) string

	// QuoteTable quotes a table reference, qualified by schema where the dialect has schemas.
	QuoteTable(schema, table string) (string, error)

	// IdentifierQuote returns the identifier quote character.
	IdentifierQuote() byte

	// QuoteValue renders a Go value as a SQL literal.
	QuoteValue(value any) (string, error)

	// BoolLiteral returns the literal for a boolean.
	BoolLiteral(value bool) string

	// MaxIdentifierLength is the longest identifier the database accepts without truncation.
	MaxIdentifierLength() int

	// IsValidIdentifier reports whether name can be used as an unquoted-safe identifier.
	IsValidIdentifier(name string) bool

	// Cast renders a type cast of an already quoted expression.
	Cast(expr, typeName string) string

	// JSONSelector renders a JSON path selection on an already quoted column.
	JSONSelector(quotedColumn string, path []JSONStep) (string, error)

	// RewriteOperator maps a canonical operator onto the dialect's spelling.
	RewriteOperator(operator string) (string, error)

	// IsListOperator reports dialect-specific set/containment operators accepting list operands.
	IsListOperator(operator string) bool

	// AssembleCondition renders operator shapes that need dialect-specific syntax.
	// handled is false when the generic "column operator value" form applies.
	AssembleCondition(column, operator string, value any) (sql string, handled bool, err error)

	// SupportsReturning reports native INSERT/UPDATE/DELETE ... RETURNING support.
	SupportsReturning() bool

	// SupportsDistinctOn reports SELECT DISTINCT ON (...) support.
	SupportsDistinctOn() bool

	// PlaceholderFormat is the squirrel placeholder format for parameterized DML.
	PlaceholderFormat() squirrel.PlaceholderFormat

	// EscapePlaceholders protects literal '?' characters in SQL that is embedded into
	// squirrel statements.
	EscapePlaceholders(sql string) string
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var profiles = map[dbtypes.Vendor]Dialect{
	dbtypes.PostgreSQL: Postgres{},
	dbtypes.MySQL:      MySQL{},
}

// For returns the profile for vendor.
func For(vendor dbtypes.Vendor) (Dialect, error) {
	d, ok := profiles[vendor]
	if !ok {
		return nil, fmt.Errorf("unsupported database vendor: %s (supported: %s, %s)", vendor, dbtypes.PostgreSQL, dbtypes.MySQL)
	}
	return d, nil
}

// MustFor is like For but panics for unknown vendors.
func MustFor(vendor dbtypes.Vendor) Dialect {
	d, err := For(vendor)
	if err != nil {
		panic(err.Error())
	}
	return d
}
