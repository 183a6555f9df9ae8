// Package builder assembles dialect-correct SELECT statements from declarative query state
// and renders DML through squirrel.
//
// A SelectQuery holds only source state. Every Compile starts from that state with a fresh
// alias allocator and column cache, so compiling twice without mutation yields identical
// SQL. A SelectQuery is not safe for concurrent use; Clone it before sharing.
package builder

import (
	"fmt"
	"strings"

	"github.com/gaborage/go-bricks-sql/database/internal/columns"
	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// Sort directions accepted by OrderBy.
const (
	Asc  = "ASC"
	Desc = "DESC"
)

// JoinResolver materializes a join that is referenced but not declared. It returns the
// configurations to add, parents first, or nil when name is unknown.
type JoinResolver func(name string) ([]*dbtypes.JoinConfig, error)

// ColumnLister expands a wildcard. join is empty for the base table; cfg is the join
// configuration otherwise.
type ColumnLister func(join string, cfg *dbtypes.JoinConfig) ([]string, error)

type columnSpec struct {
	column any
	alias  string
}

type orderItem struct {
	column    any
	direction string
}

type cteSpec struct {
	name  string
	query *SelectQuery
	raw   *dbtypes.RawExpression
}

// SelectQuery is the mutable state of a SELECT statement.
type SelectQuery struct {
	dialect dialect.Dialect
	schema  string
	table   string
	alias   string

	columns    []columnSpec
	distinct   bool
	distinctOn []any
	where      dbtypes.Conditions
	having     dbtypes.Conditions
	groupBy    []any
	orderBy    []orderItem
	limit      uint64
	offset     uint64
	hasLimit   bool

	joins      []*dbtypes.JoinConfig
	crossJoins []dbtypes.RawExpression
	ctes       []cteSpec

	joinResolver  JoinResolver
	columnLister  ColumnLister
	columnChecker columns.ColumnChecker

	err error
}

// NewSelect starts a query on table. A "schema.table" name is split into its parts.
// Columns default to every column of the base table plus the columns declared by joins.
func NewSelect(d dialect.Dialect, table string, cols ...any) *SelectQuery {
	q := &SelectQuery{dialect: d}
	table = strings.TrimSpace(table)
	if dot := strings.Index(table, "."); dot >= 0 {
		q.schema, table = table[:dot], table[dot+1:]
	}
	q.table = table
	q.alias = table
	if table == "" {
		q.setErr(&dbtypes.InvalidColumnReferenceError{Column: table, Context: "from", Reason: "table name cannot be empty"})
	}
	return q.Columns(cols...)
}

// Dialect returns the dialect the query renders for.
func (q *SelectQuery) Dialect() dialect.Dialect { return q.dialect }

// Table returns the base table name.
func (q *SelectQuery) Table() string { return q.table }

// Alias returns the base table alias used in column references ("p.id").
func (q *SelectQuery) Alias() string { return q.alias }

// Err returns the first error recorded by the fluent methods.
func (q *SelectQuery) Err() error { return q.err }

// AddError records err as if a fluent method had failed; Compile and the SQL methods
// return the first recorded error.
func (q *SelectQuery) AddError(err error) *SelectQuery {
	if err != nil {
		q.setErr(err)
	}
	return q
}

func (q *SelectQuery) setErr(err error) {
	if q.err == nil {
		q.err = err
	}
}

// As sets the base table alias.
func (q *SelectQuery) As(alias string) *SelectQuery {
	if !q.dialect.IsValidIdentifier(alias) {
		q.setErr(&dbtypes.InvalidColumnReferenceError{Column: alias, Context: "from", Reason: "alias is not a valid identifier"})
		return q
	}
	for _, j := range q.joins {
		if j.Name == alias {
			q.setErr(fmt.Errorf("%w: %q is already used by a join", dbtypes.ErrDuplicateJoinName, alias))
			return q
		}
	}
	q.alias = alias
	return q
}

// Columns appends selected columns: strings using the column grammar or RawExpressions.
func (q *SelectQuery) Columns(cols ...any) *SelectQuery {
	for _, c := range cols {
		q.columns = append(q.columns, columnSpec{column: c})
	}
	return q
}

// Column appends one selected column under an explicit alias.
func (q *SelectQuery) Column(column any, alias string) *SelectQuery {
	q.columns = append(q.columns, columnSpec{column: column, alias: alias})
	return q
}

// ResetColumns drops the selected columns.
func (q *SelectQuery) ResetColumns() *SelectQuery {
	q.columns = nil
	return q
}

// Distinct turns on SELECT DISTINCT. With columns it renders DISTINCT ON (...), which only
// dialects supporting it accept.
func (q *SelectQuery) Distinct(on ...any) *SelectQuery {
	q.distinct = true
	q.distinctOn = append(q.distinctOn, on...)
	return q
}

// Where appends entries to the WHERE tree.
func (q *SelectQuery) Where(conds ...dbtypes.Condition) *SelectQuery {
	q.where = append(q.where, conds...)
	return q
}

// AndWhere appends one keyed entry to the WHERE tree.
func (q *SelectQuery) AndWhere(key string, value any) *SelectQuery {
	q.where = q.where.Add(key, value)
	return q
}

// Having appends entries to the HAVING tree.
func (q *SelectQuery) Having(conds ...dbtypes.Condition) *SelectQuery {
	q.having = append(q.having, conds...)
	return q
}

// GroupBy appends GROUP BY items.
func (q *SelectQuery) GroupBy(cols ...any) *SelectQuery {
	q.groupBy = append(q.groupBy, cols...)
	return q
}

// OrderBy appends an ORDER BY item. direction defaults to ASC.
func (q *SelectQuery) OrderBy(column any, direction ...string) *SelectQuery {
	dir := Asc
	if len(direction) > 0 {
		switch d := strings.ToUpper(strings.TrimSpace(direction[0])); d {
		case Asc, Desc:
			dir = d
		default:
			q.setErr(fmt.Errorf("invalid sort direction %q", direction[0]))
		}
	}
	q.orderBy = append(q.orderBy, orderItem{column: column, direction: dir})
	return q
}

// Limit sets the maximum number of rows.
func (q *SelectQuery) Limit(limit uint64) *SelectQuery {
	q.limit = limit
	q.hasLimit = true
	return q
}

// Offset sets the number of rows to skip.
func (q *SelectQuery) Offset(offset uint64) *SelectQuery {
	q.offset = offset
	return q
}

// Page sets LIMIT/OFFSET for a 1-based page number.
func (q *SelectQuery) Page(page, perPage uint64) *SelectQuery {
	if page < 1 {
		page = 1
	}
	return q.Limit(perPage).Offset((page - 1) * perPage)
}

// Join declares a joined table. Join names must be valid identifiers, unique per query,
// and different from the base table alias.
func (q *SelectQuery) Join(cfg dbtypes.JoinConfig) *SelectQuery {
	if err := q.validateJoin(&cfg); err != nil {
		q.setErr(err)
		return q
	}
	q.joins = append(q.joins, cfg.Clone())
	return q
}

// InnerJoin declares an INNER join of foreignTable ON Name.foreignColumn = localColumn.
// localColumn may be qualified with a parent join ("Owner.company_id").
func (q *SelectQuery) InnerJoin(name, foreignTable, foreignColumn, localColumn string, cols ...any) *SelectQuery {
	return q.Join(joinConfig(dbtypes.InnerJoin, name, foreignTable, foreignColumn, localColumn, cols))
}

// LeftJoin declares a LEFT join; see InnerJoin.
func (q *SelectQuery) LeftJoin(name, foreignTable, foreignColumn, localColumn string, cols ...any) *SelectQuery {
	return q.Join(joinConfig(dbtypes.LeftJoin, name, foreignTable, foreignColumn, localColumn, cols))
}

func joinConfig(t dbtypes.JoinType, name, foreignTable, foreignColumn, localColumn string, cols []any) dbtypes.JoinConfig {
	cfg := dbtypes.JoinConfig{
		Name:          name,
		Type:          t,
		ForeignTable:  foreignTable,
		ForeignColumn: foreignColumn,
		LocalColumn:   localColumn,
		Columns:       cols,
	}
	if dot := strings.Index(foreignTable, "."); dot >= 0 {
		cfg.ForeignSchema, cfg.ForeignTable = foreignTable[:dot], foreignTable[dot+1:]
	}
	if dot := strings.Index(localColumn, "."); dot >= 0 {
		cfg.LocalJoin, cfg.LocalColumn = localColumn[:dot], localColumn[dot+1:]
	}
	return cfg
}

// CrossJoin adds CROSS JOIN <expr>; identifiers in backticks are quoted for the dialect.
func (q *SelectQuery) CrossJoin(expr dbtypes.RawExpression) *SelectQuery {
	q.crossJoins = append(q.crossJoins, expr)
	return q
}

// With registers sub as a CTE. CTEs registered on sub are hoisted into this statement.
func (q *SelectQuery) With(name string, sub *SelectQuery) *SelectQuery {
	if !q.dialect.IsValidIdentifier(name) {
		q.setErr(&dbtypes.InvalidColumnReferenceError{Column: name, Context: "with", Reason: "CTE name is not a valid identifier"})
		return q
	}
	if sub == nil {
		q.setErr(fmt.Errorf("CTE %q has no query", name))
		return q
	}
	q.ctes = append(q.ctes, cteSpec{name: name, query: sub})
	return q
}

// WithRaw registers a raw SQL CTE body.
func (q *SelectQuery) WithRaw(name string, body dbtypes.RawExpression) *SelectQuery {
	if !q.dialect.IsValidIdentifier(name) {
		q.setErr(&dbtypes.InvalidColumnReferenceError{Column: name, Context: "with", Reason: "CTE name is not a valid identifier"})
		return q
	}
	q.ctes = append(q.ctes, cteSpec{name: name, raw: &body})
	return q
}

// HasJoin reports whether a join is declared under name.
func (q *SelectQuery) HasJoin(name string) bool {
	return q.findJoin(name) != nil
}

// JoinConfigs returns copies of the declared joins.
func (q *SelectQuery) JoinConfigs() []*dbtypes.JoinConfig {
	out := make([]*dbtypes.JoinConfig, len(q.joins))
	for i, j := range q.joins {
		out[i] = j.Clone()
	}
	return out
}

// SetJoinResolver installs the hook that materializes undeclared joins.
func (q *SelectQuery) SetJoinResolver(r JoinResolver) *SelectQuery {
	q.joinResolver = r
	return q
}

// SetColumnLister installs the hook that expands wildcards.
func (q *SelectQuery) SetColumnLister(l ColumnLister) *SelectQuery {
	q.columnLister = l
	return q
}

// SetColumnChecker installs a schema-aware column existence check.
func (q *SelectQuery) SetColumnChecker(c columns.ColumnChecker) *SelectQuery {
	q.columnChecker = c
	return q
}

// Clone returns a deep copy. Join configurations, condition trees and CTE queries are
// duplicated so the copies share no mutable state; hooks are shared.
func (q *SelectQuery) Clone() *SelectQuery {
	cp := *q
	cp.columns = append([]columnSpec(nil), q.columns...)
	cp.distinctOn = append([]any(nil), q.distinctOn...)
	cp.where = q.where.Clone()
	cp.having = q.having.Clone()
	cp.groupBy = append([]any(nil), q.groupBy...)
	cp.orderBy = append([]orderItem(nil), q.orderBy...)
	cp.crossJoins = append([]dbtypes.RawExpression(nil), q.crossJoins...)
	cp.joins = make([]*dbtypes.JoinConfig, len(q.joins))
	for i, j := range q.joins {
		cp.joins[i] = j.Clone()
	}
	cp.ctes = make([]cteSpec, len(q.ctes))
	for i, c := range q.ctes {
		cp.ctes[i] = cteSpec{name: c.name, raw: c.raw}
		if c.query != nil {
			cp.ctes[i].query = c.query.Clone()
		}
	}
	return &cp
}

func (q *SelectQuery) findJoin(name string) *dbtypes.JoinConfig {
	for _, j := range q.joins {
		if j.Name == name {
			return j
		}
	}
	return nil
}

func (q *SelectQuery) validateJoin(cfg *dbtypes.JoinConfig) error {
	if !q.dialect.IsValidIdentifier(cfg.Name) {
		return &dbtypes.InvalidColumnReferenceError{Column: cfg.Name, Context: "join", Reason: "join name is not a valid identifier"}
	}
	if cfg.Name == q.alias || q.findJoin(cfg.Name) != nil {
		return fmt.Errorf("%w: %q", dbtypes.ErrDuplicateJoinName, cfg.Name)
	}
	if cfg.Type == "" {
		cfg.Type = dbtypes.InnerJoin
	}
	if strings.TrimSpace(cfg.ForeignTable) == "" {
		return &dbtypes.InvalidColumnReferenceError{Column: cfg.Name, Context: "join", Reason: "foreign table cannot be empty"}
	}
	if cfg.Type != dbtypes.CrossJoin && (cfg.LocalColumn == "" || cfg.ForeignColumn == "") {
		return &dbtypes.InvalidColumnReferenceError{Column: cfg.Name, Context: "join", Reason: "local and foreign columns are required"}
	}
	return nil
}
