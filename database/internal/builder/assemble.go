package builder

import (
	"fmt"
	"math"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-sql/database/internal/aliases"
	"github.com/gaborage/go-bricks-sql/database/internal/columns"
	"github.com/gaborage/go-bricks-sql/database/internal/conditions"
	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

type mode int

const (
	modeSelect mode = iota
	modeCount
	modeExists
)

const (
	countAlias       = "_count"
	mysqlMaxRowCount = math.MaxUint64
)

// field places one result column in a denormalized row.
type field struct {
	join string
	name string
}

// build is the per-compile state: aliases, resolved columns and compiled clause text.
// It is discarded after the statement is produced.
type build struct {
	q    *SelectQuery
	d    dialect.Dialect
	mode mode

	aliases   *aliases.Allocator
	resolver  *columns.Resolver
	compiler  *conditions.Compiler
	baseShort string

	joins     []*dbtypes.JoinConfig
	joinShort map[string]string
	cteNames  map[string]bool

	selectList    []string
	selectAliases map[string]string
	fields        map[string]field

	context string
	onJoin  string
}

func (q *SelectQuery) newBuild(m mode) (*build, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.dialect == nil {
		return nil, fmt.Errorf("query on %q has no dialect", q.table)
	}

	b := &build{
		q:             q,
		d:             q.dialect,
		mode:          m,
		aliases:       aliases.New(q.dialect.MaxIdentifierLength()),
		resolver:      columns.NewResolver(q.dialect, q.alias),
		joinShort:     make(map[string]string),
		cteNames:      make(map[string]bool),
		selectAliases: make(map[string]string),
		fields:        make(map[string]field),
	}
	b.baseShort = b.aliases.Table(q.alias)
	if q.columnChecker != nil {
		b.resolver.SetChecker(q.columnChecker)
	}
	for _, j := range q.joins {
		b.addJoin(j.Clone())
	}
	for _, c := range q.ctes {
		b.cteNames[c.name] = true
	}
	b.compiler = &conditions.Compiler{
		Dialect:           q.dialect,
		QuoteColumn:       b.conditionColumn,
		ProcessExpression: b.processExpression,
	}
	return b, nil
}

// Compile renders the SELECT statement together with the data needed to denormalize its rows.
func (q *SelectQuery) Compile() (*Statement, error) {
	b, err := q.newBuild(modeSelect)
	if err != nil {
		return nil, err
	}
	sql, err := b.statement()
	if err != nil {
		return nil, err
	}
	return b.newStatement(sql), nil
}

// ToSQL renders the SELECT statement.
func (q *SelectQuery) ToSQL() (string, error) {
	stmt, err := q.Compile()
	if err != nil {
		return "", err
	}
	return stmt.SQL, nil
}

// ToSql implements squirrel.Sqlizer so a query can be embedded in squirrel statements.
// Literal question marks are escaped for the dialect's placeholder format.
func (q *SelectQuery) ToSql() (string, []any, error) { //nolint:revive // squirrel.Sqlizer
	sql, err := q.ToSQL()
	if err != nil {
		return "", nil, err
	}
	return q.dialect.EscapePlaceholders(sql), nil, nil
}

// CountSQL renders SELECT COUNT(*) over the rows the query matches, ignoring ordering and
// pagination. Unused LEFT joins are left out.
func (q *SelectQuery) CountSQL() (string, error) {
	b, err := q.newBuild(modeCount)
	if err != nil {
		return "", err
	}
	return b.statement()
}

// ExistsSQL renders SELECT EXISTS(...) for the query. Unused LEFT joins are left out.
func (q *SelectQuery) ExistsSQL() (string, error) {
	b, err := q.newBuild(modeExists)
	if err != nil {
		return "", err
	}
	return b.statement()
}

// statement renders the full statement, CTEs included, and validates its aliases.
func (b *build) statement() (string, error) {
	ctes, sb, err := b.render()
	if err != nil {
		return "", err
	}
	if len(ctes) > 0 {
		sb = sb.Prefix(withClause(b.d, ctes))
	}
	sql, _, err := sb.PlaceholderFormat(b.d.PlaceholderFormat()).ToSql()
	if err != nil {
		return "", err
	}
	if err := b.validateAliases(sql); err != nil {
		return "", err
	}
	return sql, nil
}

// render produces the statement body and the CTEs it needs, without the WITH prefix, so
// that a query used as a CTE can hand its own CTEs to the enclosing statement.
// Every SQL fragment handed to squirrel is escaped with EscapePlaceholders; the body keeps
// the Question format until statement applies the dialect's format.
func (b *build) render() ([]namedSQL, squirrel.SelectBuilder, error) {
	q := b.q
	var none squirrel.SelectBuilder

	if err := b.resolveColumns(); err != nil {
		return nil, none, err
	}

	ctes, err := b.compileCTEs()
	if err != nil {
		return nil, none, err
	}

	b.context = "where"
	where, err := b.compiler.Compile(q.where, conditions.And)
	if err != nil {
		return nil, none, err
	}
	b.context = "having"
	having, err := b.compiler.Compile(q.having, conditions.And)
	if err != nil {
		return nil, none, err
	}

	groupBy, err := b.renderItems(q.groupBy, "group by")
	if err != nil {
		return nil, none, err
	}
	distinctOn, err := b.renderItems(q.distinctOn, "distinct")
	if err != nil {
		return nil, none, err
	}

	var orderBy []string
	if b.mode == modeSelect {
		for _, item := range q.orderBy {
			sql, err := b.renderItem(item.column, "order by")
			if err != nil {
				return nil, none, err
			}
			orderBy = append(orderBy, sql+" "+item.direction)
		}
	}

	grouped := len(groupBy) > 0 || having != ""
	prune := b.mode != modeSelect && !(b.mode == modeCount && q.distinct)
	joins, err := b.joinsSQL(prune, where, having, strings.Join(groupBy, ", "))
	if err != nil {
		return nil, none, err
	}

	from, err := b.fromClause()
	if err != nil {
		return nil, none, err
	}

	clauses := func(sb squirrel.SelectBuilder) squirrel.SelectBuilder {
		sb = sb.From(b.escape(from))
		for _, join := range joins {
			sb = sb.JoinClause(b.escape(join))
		}
		sb = sb.Where(b.escape(where))
		if len(groupBy) > 0 {
			sb = sb.GroupBy(b.escapeAll(groupBy)...)
		}
		if having != "" {
			sb = sb.Having(b.escape(having))
		}
		return sb
	}

	switch b.mode {
	case modeCount:
		if q.distinct || grouped {
			inner := squirrel.Select("1")
			if q.distinct {
				if inner, err = b.selectBuilder(distinctOn); err != nil {
					return nil, none, err
				}
			}
			return ctes, squirrel.Select("COUNT(*)").FromSelect(clauses(inner), b.d.QuoteIdentifier(countAlias)), nil
		}
		return ctes, clauses(squirrel.Select("COUNT(*)")), nil

	case modeExists:
		inner := clauses(squirrel.Select("1")).Limit(1)
		return ctes, squirrel.Select().Column(squirrel.ConcatExpr("EXISTS(", inner, ")")), nil
	}

	sb, err := b.selectBuilder(distinctOn)
	if err != nil {
		return nil, none, err
	}
	sb = clauses(sb).OrderBy(b.escapeAll(orderBy)...)
	return ctes, b.paginate(sb), nil
}

// selectBuilder starts a SELECT over the resolved select list.
func (b *build) selectBuilder(distinctOn []string) (squirrel.SelectBuilder, error) {
	sb := squirrel.Select(b.escapeAll(b.selectList)...)
	if !b.q.distinct {
		return sb, nil
	}
	if len(distinctOn) == 0 {
		return sb.Distinct(), nil
	}
	if !b.d.SupportsDistinctOn() {
		return sb, fmt.Errorf("%w: DISTINCT ON", dbtypes.ErrUnsupportedByDialect)
	}
	return sb.Options("DISTINCT ON (" + b.escape(strings.Join(distinctOn, ", ")) + ")"), nil
}

func (b *build) fromClause() (string, error) {
	table, err := b.d.QuoteTable(b.q.schema, b.q.table)
	if err != nil {
		return "", err
	}
	if b.baseShort != b.q.table {
		table += " AS " + b.d.QuoteIdentifier(b.baseShort)
	}
	return table, nil
}

// paginate applies LIMIT and OFFSET. MySQL has no OFFSET without LIMIT, so an offset alone
// gets the largest row count MySQL accepts.
func (b *build) paginate(sb squirrel.SelectBuilder) squirrel.SelectBuilder {
	if b.q.hasLimit {
		sb = sb.Limit(b.q.limit)
	}
	if b.q.offset > 0 {
		if !b.q.hasLimit && b.d.Name() == dbtypes.MySQL {
			sb = sb.Limit(mysqlMaxRowCount)
		}
		sb = sb.Offset(b.q.offset)
	}
	return sb
}

func (b *build) escape(sql string) string {
	return b.d.EscapePlaceholders(sql)
}

func (b *build) escapeAll(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = b.escape(p)
	}
	return out
}

// resolveColumns fills the select list, expanding wildcards and adding join-declared columns.
func (b *build) resolveColumns() error {
	b.context = "select"
	specs := b.q.columns
	if len(specs) == 0 {
		specs = []columnSpec{{column: columns.Wildcard}}
	}
	for _, spec := range specs {
		if err := b.selectColumn(spec.column, spec.alias, ""); err != nil {
			return err
		}
	}
	// b.joins may grow while columns materialize joins.
	for i := 0; i < len(b.joins); i++ {
		j := b.joins[i]
		for _, c := range j.Columns {
			if err := b.selectColumn(c, "", j.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *build) selectColumn(column any, alias, join string) error {
	ref, err := b.resolver.Analyze(column, alias, join, b.context)
	if err != nil {
		return err
	}

	if ref.IsWildcard() {
		return b.selectWildcard(ref.JoinName)
	}

	sql, err := b.renderRef(ref, b.context)
	if err != nil {
		return err
	}
	if ref.IsExpression() {
		sql = ref.Expression.Interpolated(sql)
	}

	resultName := ref.ResultName()
	resultAlias := resultName
	if short, isJoin := b.joinShort[ref.JoinName]; isJoin && ref.Alias == "" {
		resultAlias = b.aliases.Column(short, resultName)
	} else if len(resultAlias) > b.aliases.MaxLength() {
		resultAlias = b.aliases.Alias(resultAlias)
	}

	if resultAlias != "" {
		b.fields[resultAlias] = field{join: ref.JoinName, name: resultName}
		plain := !ref.IsExpression() && len(ref.JSONPath) == 0 && ref.TypeCast == ""
		if !plain || resultAlias != ref.Name {
			b.selectAliases[resultAlias] = sql
			sql += " AS " + b.d.QuoteIdentifier(resultAlias)
		}
	}
	b.selectList = append(b.selectList, sql)
	return nil
}

func (b *build) selectWildcard(join string) error {
	qualifier, err := b.qualifier(join, b.context)
	if err != nil {
		return err
	}
	if b.q.columnLister != nil && !b.cteNames[join] {
		names, err := b.q.columnLister(join, b.findJoin(join))
		if err != nil {
			return err
		}
		if len(names) > 0 {
			for _, name := range names {
				if err := b.selectColumn(name, "", join); err != nil {
					return err
				}
			}
			return nil
		}
	}
	b.selectList = append(b.selectList, qualifier+".*")
	return nil
}

// renderRef renders a parsed reference as qualified, JSON-selected and cast SQL.
func (b *build) renderRef(ref *columns.ColumnReference, context string) (string, error) {
	if ref.IsExpression() {
		return b.processExpression(*ref.Expression)
	}
	qualifier, err := b.qualifier(ref.JoinName, context)
	if err != nil {
		return "", err
	}
	if ref.IsWildcard() {
		return qualifier + ".*", nil
	}
	sql := qualifier + "." + b.d.QuoteIdentifier(ref.Name)
	if len(ref.JSONPath) > 0 {
		if sql, err = b.d.JSONSelector(sql, ref.JSONPath); err != nil {
			return "", &dbtypes.InvalidColumnReferenceError{Column: ref.Name, Context: context, Reason: err.Error()}
		}
	}
	if ref.TypeCast != "" {
		sql = b.d.Cast(sql, ref.TypeCast)
	}
	return sql, nil
}

// conditionColumn quotes the column part of a condition key.
func (b *build) conditionColumn(column string) (string, error) {
	if b.context == "having" {
		if expr, ok := b.selectAliases[strings.TrimSpace(column)]; ok {
			return expr, nil
		}
	}
	join := ""
	if b.onJoin != "" && !hasJoinPrefix(column) {
		join = b.onJoin
	}
	ref, err := b.resolver.Analyze(column, "", join, b.context)
	if err != nil {
		return "", err
	}
	if ref.IsWildcard() {
		return "", &dbtypes.InvalidColumnReferenceError{Column: column, Context: b.context, Reason: "wildcard cannot be used in a condition"}
	}
	return b.renderRef(ref, b.context)
}

func (b *build) renderItems(items []any, context string) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		sql, err := b.renderItem(item, context)
		if err != nil {
			return nil, err
		}
		out = append(out, sql)
	}
	return out, nil
}

// renderItem renders a GROUP BY, ORDER BY or DISTINCT ON item. Names of aliased select
// expressions render as the alias.
func (b *build) renderItem(item any, context string) (string, error) {
	b.context = context
	switch v := item.(type) {
	case string:
		if _, ok := b.selectAliases[strings.TrimSpace(v)]; ok {
			return b.d.QuoteIdentifier(strings.TrimSpace(v)), nil
		}
		ref, err := b.resolver.Analyze(v, "", "", context)
		if err != nil {
			return "", err
		}
		if ref.IsWildcard() {
			return "", &dbtypes.InvalidColumnReferenceError{Column: v, Context: context, Reason: "wildcard is not allowed here"}
		}
		return b.renderRef(ref, context)
	case dbtypes.RawExpression:
		sql, err := b.processExpression(v)
		return v.Interpolated(sql), err
	case *dbtypes.RawExpression:
		if v != nil {
			sql, err := b.processExpression(*v)
			return v.Interpolated(sql), err
		}
	}
	return "", &dbtypes.InvalidColumnReferenceError{Column: fmt.Sprint(item), Context: context, Reason: fmt.Sprintf("unsupported item type %T", item)}
}

// hasJoinPrefix reports whether a column mention is qualified ("Owner.id").
func hasJoinPrefix(column string) bool {
	end := len(column)
	for _, marker := range []string{"->", "#>", "::"} {
		if idx := strings.Index(column, marker); idx >= 0 && idx < end {
			end = idx
		}
	}
	return strings.Contains(column[:end], ".")
}

// qualifier returns the quoted alias that prefixes columns of join ("" is the base table).
func (b *build) qualifier(join, context string) (string, error) {
	if join == "" || join == b.q.alias {
		return b.d.QuoteIdentifier(b.baseShort), nil
	}
	if short, ok := b.joinShort[join]; ok {
		return b.d.QuoteIdentifier(short), nil
	}
	if b.cteNames[join] {
		return b.d.QuoteIdentifier(join), nil
	}
	short, err := b.ensureJoin(join, context)
	if err != nil {
		return "", err
	}
	return b.d.QuoteIdentifier(short), nil
}

func (b *build) newStatement(sql string) *Statement {
	joins := make(map[string]*dbtypes.JoinConfig, len(b.joins))
	order := make([]string, 0, len(b.joins))
	for _, j := range b.joins {
		joins[j.Name] = j
		order = append(order, j.Name)
	}
	return &Statement{
		SQL:     sql,
		fields:  b.fields,
		aliases: b.aliases,
		joins:   joins,
		order:   order,
	}
}
