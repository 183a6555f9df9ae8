package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-sql/database/internal/conditions"
	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// DML renders INSERT, UPDATE and DELETE statements with the dialect's placeholder format.
// Values travel as arguments; conditions are compiled like SELECT conditions and embedded
// as a squirrel.Expr.
type DML struct {
	dialect          dialect.Dialect
	statementBuilder squirrel.StatementBuilderType
}

// NewDML creates a DML renderer for d.
func NewDML(d dialect.Dialect) *DML {
	return &DML{
		dialect:          d,
		statementBuilder: squirrel.StatementBuilder.PlaceholderFormat(d.PlaceholderFormat()),
	}
}

// Insert renders a multi-row INSERT. Columns are the union of the row keys in sorted
// order; a row lacking a column gets DEFAULT.
func (m *DML) Insert(table string, rows []map[string]any, returning ...string) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no rows", table)
	}
	quotedTable, err := m.table(table)
	if err != nil {
		return "", nil, err
	}

	keys := unionKeys(rows)
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("insert into %s: rows have no columns", table)
	}

	ib := m.statementBuilder.Insert(quotedTable).Columns(m.escapeIdentifiers(keys)...)
	for _, row := range rows {
		vals := make([]any, len(keys))
		for i, k := range keys {
			v, present := row[k]
			if !present {
				vals[i] = squirrel.Expr("DEFAULT")
				continue
			}
			if vals[i], err = m.value(v); err != nil {
				return "", nil, err
			}
		}
		ib = ib.Values(vals...)
	}

	suffix, err := m.returning(returning)
	if err != nil {
		return "", nil, err
	}
	if suffix != "" {
		ib = ib.Suffix(suffix)
	}
	return ib.ToSql()
}

// Update renders UPDATE table SET ... WHERE ....
func (m *DML) Update(table string, values map[string]any, where dbtypes.Conditions, returning ...string) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("update %s: no values", table)
	}
	quotedTable, err := m.table(table)
	if err != nil {
		return "", nil, err
	}

	ub := m.statementBuilder.Update(quotedTable)
	for _, k := range sortedKeys(values) {
		v, err := m.value(values[k])
		if err != nil {
			return "", nil, err
		}
		ub = ub.Set(m.dialect.QuoteIdentifier(k), v)
	}

	cond, err := m.Where(where)
	if err != nil {
		return "", nil, err
	}
	if cond != nil {
		ub = ub.Where(cond)
	}

	suffix, err := m.returning(returning)
	if err != nil {
		return "", nil, err
	}
	if suffix != "" {
		ub = ub.Suffix(suffix)
	}
	return ub.ToSql()
}

// Delete renders DELETE FROM table WHERE ....
func (m *DML) Delete(table string, where dbtypes.Conditions, returning ...string) (string, []any, error) {
	quotedTable, err := m.table(table)
	if err != nil {
		return "", nil, err
	}
	db := m.statementBuilder.Delete(quotedTable)

	cond, err := m.Where(where)
	if err != nil {
		return "", nil, err
	}
	if cond != nil {
		db = db.Where(cond)
	}

	suffix, err := m.returning(returning)
	if err != nil {
		return "", nil, err
	}
	if suffix != "" {
		db = db.Suffix(suffix)
	}
	return db.ToSql()
}

// Where compiles a condition tree over unqualified columns into a squirrel.Sqlizer.
// It returns nil for an empty tree.
func (m *DML) Where(where dbtypes.Conditions) (squirrel.Sqlizer, error) {
	if where.IsEmpty() {
		return nil, nil
	}
	c := conditions.New(m.dialect)
	c.ProcessExpression = func(expr dbtypes.RawExpression) (string, error) {
		return quoteBackticks(m.dialect, expr.SQL)
	}
	sql, err := c.Compile(where, conditions.And)
	if err != nil {
		return nil, err
	}
	if sql == "" {
		return nil, nil
	}
	return squirrel.Expr(m.dialect.EscapePlaceholders(sql)), nil
}

func (m *DML) table(table string) (string, error) {
	schema := ""
	if dot := strings.Index(table, "."); dot >= 0 {
		schema, table = table[:dot], table[dot+1:]
	}
	if strings.TrimSpace(table) == "" {
		return "", &dbtypes.InvalidColumnReferenceError{Column: table, Context: "dml", Reason: "table name cannot be empty"}
	}
	return m.dialect.QuoteTable(schema, table)
}

func (m *DML) value(v any) (any, error) {
	switch e := v.(type) {
	case dbtypes.RawExpression:
		sql, err := quoteBackticks(m.dialect, e.SQL)
		if err != nil {
			return nil, err
		}
		return squirrel.Expr(m.dialect.EscapePlaceholders(e.Interpolated(sql))), nil
	case *dbtypes.RawExpression:
		if e != nil {
			return m.value(*e)
		}
	}
	return v, nil
}

func (m *DML) returning(cols []string) (string, error) {
	if len(cols) == 0 {
		return "", nil
	}
	if !m.dialect.SupportsReturning() {
		return "", fmt.Errorf("%w: RETURNING", dbtypes.ErrUnsupportedByDialect)
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		if c == "*" {
			quoted[i] = c
			continue
		}
		quoted[i] = m.dialect.QuoteIdentifier(c)
	}
	return "RETURNING " + strings.Join(quoted, ", "), nil
}

func (m *DML) escapeIdentifiers(cols []string) []string {
	escaped := make([]string, len(cols))
	for i, col := range cols {
		escaped[i] = m.dialect.QuoteIdentifier(col)
	}
	return escaped
}

// quoteBackticks re-quotes `identifiers` of a raw expression for d.
func quoteBackticks(d dialect.Dialect, sql string) (string, error) {
	b := &build{d: d, q: &SelectQuery{dialect: d}}
	return b.rewriteIdentifiers(sql, false)
}

// sortedKeys returns a deterministically ordered slice of keys from the provided map.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionKeys(rows []map[string]any) []string {
	seen := make(map[string]any)
	for _, row := range rows {
		for k := range row {
			seen[k] = nil
		}
	}
	return sortedKeys(seen)
}
