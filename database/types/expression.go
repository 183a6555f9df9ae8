//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"fmt"
	"strings"
)

// RawExpression represents a raw SQL fragment that can be used as a column, a condition,
// a condition value, a GROUP BY or ORDER BY item, or a CTE body.
//
// Identifiers inside the fragment may be written in backticks (`Owner`.`id`). When the
// expression is interpolated into a query, backtick-quoted identifiers are re-quoted for the
// target dialect and join names are replaced with the short aliases used by that query.
// Everything else is passed through untouched.
//
// SECURITY WARNING: Raw SQL expressions are NOT escaped or sanitized by the framework.
// Never interpolate user input directly into expressions - this creates SQL injection vulnerabilities.
//
// Safe usage:
//
//	qb.Select("orders", types.Expr("COUNT(*)", "total"))
//	types.Cond("created_at >", types.Expr("NOW() - INTERVAL '1 day'"))
//	types.RawCond(types.Expr("`Owner`.`id` IS NOT NULL"))
type RawExpression struct {
	SQL          string // The raw SQL expression
	Alias        string // Optional alias (AS clause)
	Parenthesize bool   // Wrap in parentheses when interpolated
}

// Expr creates a raw SQL expression with optional alias.
//
// Validation (fail-fast with panic):
//   - SQL cannot be empty
//   - Maximum 1 alias parameter allowed
//   - Alias cannot contain dangerous characters: ; ' " -- (SQL injection patterns)
func Expr(sql string, alias ...string) RawExpression {
	if strings.TrimSpace(sql) == "" {
		panic(ErrEmptyExpressionSQL.Error()) //nolint:S8148 // NOSONAR: Fail-fast on invalid SQL expression construction
	}

	if len(alias) > 1 {
		panic(fmt.Sprintf("Expr accepts maximum 1 alias, got %d", len(alias))) //nolint:S8148 // NOSONAR: Fail-fast on invalid SQL expression construction
	}

	var aliasStr string
	if len(alias) == 1 {
		aliasStr = alias[0]
		if err := validateAlias(aliasStr); err != nil {
			panic(err.Error()) //nolint:S8148 // NOSONAR: Fail-fast on invalid SQL expression construction
		}
	}

	return RawExpression{
		SQL:   sql,
		Alias: aliasStr,
	}
}

// ExprWrapped is like Expr but marks the expression to be parenthesized when interpolated,
// which is what sub-selects used as condition values need.
//
//	types.Cond("id IN", types.ExprWrapped("SELECT user_id FROM admins"))
func ExprWrapped(sql string, alias ...string) RawExpression {
	e := Expr(sql, alias...)
	e.Parenthesize = true
	return e
}

// Interpolated returns the SQL text with the parentheses requested by Parenthesize applied.
func (e RawExpression) Interpolated(sql string) string {
	if e.Parenthesize {
		return "(" + sql + ")"
	}
	return sql
}

func validateAlias(alias string) error {
	dangerousChars := []string{";", "'", "\"", "--", "/*", "*/"}
	for _, char := range dangerousChars {
		if strings.Contains(alias, char) {
			return fmt.Errorf("%w: alias contains dangerous character '%s': %s", ErrDangerousAlias, char, alias)
		}
	}
	return nil
}
