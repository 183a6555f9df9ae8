// Package columns parses column mentions into structured references.
//
// Grammar accepted by Resolver.Analyze:
//
//	[Join.]column[->key|->>key|#>path|#>>path]*[::cast]
//	Join.* | Join.{*} | * | {*}
//
// A RawExpression is accepted as an opaque column.
package columns

import (
	"strings"

	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// Wildcard is the name of a reference selecting every column of a table.
const Wildcard = "*"

// ColumnReference is an immutable, parsed column mention.
// A wildcard never carries an alias or a JSON path.
type ColumnReference struct {
	Name       string
	Expression *dbtypes.RawExpression
	Alias      string
	JoinName   string
	TypeCast   string
	JSONPath   []dialect.JSONStep
}

// IsWildcard reports whether the reference selects all columns.
func (r *ColumnReference) IsWildcard() bool {
	return r.Expression == nil && r.Name == Wildcard
}

// IsExpression reports whether the reference wraps a raw SQL expression.
func (r *ColumnReference) IsExpression() bool {
	return r.Expression != nil
}

// ResultName is the name the value gets in a result row: the alias when set, otherwise the
// column name, or column_lastkey for JSON selectors. Unaliased expressions have no result name.
func (r *ColumnReference) ResultName() string {
	if r.Alias != "" {
		return r.Alias
	}
	if r.Expression != nil {
		return ""
	}
	if len(r.JSONPath) > 0 {
		return r.Name + "_" + lastJSONKey(r.JSONPath)
	}
	return r.Name
}

// WithAlias returns a copy of the reference carrying alias.
func (r *ColumnReference) WithAlias(alias string) *ColumnReference {
	cp := *r
	cp.Alias = alias
	return &cp
}

func lastJSONKey(path []dialect.JSONStep) string {
	step := path[len(path)-1]
	key := step.Key
	if step.Operator == "#>" || step.Operator == "#>>" {
		key = strings.Trim(strings.TrimSpace(key), "{}")
		if idx := strings.LastIndex(key, ","); idx >= 0 {
			key = key[idx+1:]
		}
	}
	return strings.Trim(strings.TrimSpace(key), `"'`)
}
