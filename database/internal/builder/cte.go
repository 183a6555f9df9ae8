package builder

import (
	"fmt"
	"strings"

	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
)

// namedSQL is a CTE body, escaped for squirrel.
type namedSQL struct {
	name string
	sql  string
}

// compileCTEs renders the registered CTEs. A sub-query's own CTEs are hoisted ahead of it
// so the final statement is self-contained; a name registered twice must render the same SQL.
func (b *build) compileCTEs() ([]namedSQL, error) {
	var out []namedSQL
	seen := make(map[string]string)
	add := func(name, sql string) error {
		if prev, ok := seen[name]; ok {
			if prev != sql {
				return fmt.Errorf("CTE %q is registered with different queries", name)
			}
			return nil
		}
		seen[name] = sql
		b.cteNames[name] = true
		out = append(out, namedSQL{name: name, sql: sql})
		return nil
	}

	for _, c := range b.q.ctes {
		b.context = "with " + c.name
		if c.raw != nil {
			sql, err := b.rewriteIdentifiers(c.raw.SQL, false)
			if err != nil {
				return nil, err
			}
			if err := add(c.name, b.escape(sql)); err != nil {
				return nil, err
			}
			continue
		}

		if c.query.dialect != nil && c.query.dialect.Name() != b.d.Name() {
			return nil, fmt.Errorf("CTE %q is built for %s, not %s", c.name, c.query.dialect.Name(), b.d.Name())
		}
		sub, err := c.query.newBuild(modeSelect)
		if err != nil {
			return nil, fmt.Errorf("CTE %q: %w", c.name, err)
		}
		inner, sb, err := sub.render()
		if err != nil {
			return nil, fmt.Errorf("CTE %q: %w", c.name, err)
		}
		body, _, err := sb.ToSql()
		if err != nil {
			return nil, fmt.Errorf("CTE %q: %w", c.name, err)
		}
		for _, dep := range inner {
			if err := add(dep.name, dep.sql); err != nil {
				return nil, err
			}
		}
		if err := add(c.name, body); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// withClause renders the statement prefix for ctes, whose bodies are already escaped.
func withClause(d dialect.Dialect, ctes []namedSQL) string {
	parts := make([]string, len(ctes))
	for i, c := range ctes {
		parts[i] = d.EscapePlaceholders(d.QuoteIdentifier(c.name)) + " AS (" + c.sql + ")"
	}
	return "WITH " + strings.Join(parts, ", ")
}
