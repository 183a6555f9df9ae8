// Package orm derives joins from declared table relations.
//
// A Select is a builder query over a table schema. Relations are joined explicitly with
// JoinRelation, or implicitly the first time a query mentions them:
//
//	q := orm.NewSelect(dialect.Postgres{}, posts, "id", "title").
//	    JoinRelation("Owner.Company", "name")
//	q.Where(types.Cond("Owner.active", true))
//
// Wildcards expand to the schema columns, leaving heavy columns out unless they are named,
// and every named column is checked against its table.
package orm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gaborage/go-bricks-sql/database/internal/builder"
	"github.com/gaborage/go-bricks-sql/database/internal/columns"
	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

var relationSpecPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)(?:\s+(?i:as)\s+([A-Za-z_][A-Za-z0-9_]*))?\s*$`)

// joinedSchema is a join derived from a relation.
type joinedSchema struct {
	schema dbtypes.TableSchema
	cfg    *dbtypes.JoinConfig
}

// Select is a relationship-aware SELECT query. The fluent methods of the embedded
// builder query apply to it; they return the embedded query.
// Like the builder query it is not safe for concurrent use.
type Select struct {
	*builder.SelectQuery

	table dbtypes.TableSchema
	// declared holds joins added by JoinRelation, in order.
	declared []string
	joins    map[string]joinedSchema
	// materialized holds joins resolved on first reference, so later references can
	// reach relations through them.
	materialized []string
}

// NewSelect starts a query on table.
func NewSelect(d dialect.Dialect, table dbtypes.TableSchema, cols ...any) *Select {
	name := table.TableName()
	if table.SchemaName() != "" {
		name = table.SchemaName() + "." + name
	}
	s := &Select{
		SelectQuery: builder.NewSelect(d, name, cols...),
		table:       table,
		joins:       make(map[string]joinedSchema),
	}
	s.install()
	return s
}

func (s *Select) install() {
	s.SetJoinResolver(s.resolveJoin)
	s.SetColumnLister(s.listColumns)
	s.SetColumnChecker(s.checkColumn)
}

// Schema returns the base table schema.
func (s *Select) Schema() dbtypes.TableSchema { return s.table }

// Clone returns an independent copy.
func (s *Select) Clone() *Select {
	cp := &Select{
		SelectQuery:  s.SelectQuery.Clone(),
		table:        s.table,
		declared:     append([]string(nil), s.declared...),
		joins:        make(map[string]joinedSchema, len(s.joins)),
		materialized: append([]string(nil), s.materialized...),
	}
	for name, j := range s.joins {
		cp.joins[name] = joinedSchema{schema: j.schema, cfg: j.cfg.Clone()}
	}
	cp.install()
	return cp
}

// JoinRelation joins a relation and selects cols from it. spec is a relation name of the
// base table, a path through relations ("Owner.Company"), optionally renamed
// ("Owner.Company AS Employer"). Intermediate relations of a path are joined under their
// relation names unless already joined.
func (s *Select) JoinRelation(spec string, cols ...any) *Select {
	m := relationSpecPattern.FindStringSubmatch(spec)
	if m == nil {
		s.AddError(&dbtypes.InvalidColumnReferenceError{Column: spec, Context: "join", Reason: "invalid relation path"})
		return s
	}
	path := strings.Split(m[1], ".")
	alias := m[2]

	parent := ""
	for i, segment := range path {
		last := i == len(path)-1
		name := segment
		if last && alias != "" {
			name = alias
		}
		if !last {
			if j, ok := s.joins[name]; ok && j.cfg.LocalJoin == parent {
				parent = name
				continue
			}
		}

		cfg, schema, err := s.relationJoin(parent, segment, name)
		if err != nil {
			s.AddError(err)
			return s
		}
		if last {
			cfg.Columns = cols
		}
		s.Join(*cfg)
		if s.Err() != nil {
			return s
		}
		s.declared = append(s.declared, name)
		s.joins[name] = joinedSchema{schema: schema, cfg: cfg}
		parent = name
	}
	return s
}

// relationJoin builds the join for relation of parent's schema ("" is the base table).
func (s *Select) relationJoin(parent, relation, name string) (*dbtypes.JoinConfig, dbtypes.TableSchema, error) {
	owner := s.schemaOf(parent)
	if owner == nil {
		return nil, nil, &dbtypes.MissingJoinError{Join: parent, Context: "relation " + relation}
	}
	rel, ok := owner.Relation(relation)
	if !ok {
		return nil, nil, &dbtypes.InvalidColumnReferenceError{
			Column:  relation,
			Context: "join",
			Reason:  fmt.Sprintf("%s has no relation %q", owner.TableName(), relation),
		}
	}
	if rel.Type() == dbtypes.HasMany {
		return nil, nil, fmt.Errorf("%w: %s.%s is %s; load it with a separate query",
			dbtypes.ErrUnsupportedRelationTypeForJoin, owner.TableName(), relation, rel.Type())
	}

	foreign := rel.ForeignTable()
	return &dbtypes.JoinConfig{
		Name:          name,
		Type:          rel.JoinType(),
		LocalJoin:     parent,
		LocalColumn:   rel.LocalColumn(),
		ForeignSchema: foreign.SchemaName(),
		ForeignTable:  foreign.TableName(),
		ForeignColumn: rel.ForeignColumn(),
		PrimaryKey:    foreign.PrimaryKey(),
		Conditions:    rel.Conditions(),
	}, foreign, nil
}

// schemaOf returns the schema behind a join name, "" being the base table.
func (s *Select) schemaOf(join string) dbtypes.TableSchema {
	if join == "" || join == s.Alias() {
		return s.table
	}
	if j, ok := s.joins[join]; ok {
		return j.schema
	}
	return nil
}

// resolveJoin materializes name from a relation of the base table, of a declared join or
// of a join materialized earlier. It returns the join preceded by the joins it depends on.
func (s *Select) resolveJoin(name string) ([]*dbtypes.JoinConfig, error) {
	roots := make([]string, 0, 1+len(s.declared)+len(s.materialized))
	roots = append(roots, "")
	roots = append(roots, s.declared...)
	roots = append(roots, s.materialized...)

	for _, parent := range roots {
		owner := s.schemaOf(parent)
		if owner == nil {
			continue
		}
		if _, ok := owner.Relation(name); !ok {
			continue
		}
		cfg, schema, err := s.relationJoin(parent, name, name)
		if err != nil {
			return nil, err
		}
		chain := append(s.chain(parent), cfg)
		if _, known := s.joins[name]; !known {
			s.joins[name] = joinedSchema{schema: schema, cfg: cfg}
			s.materialized = append(s.materialized, name)
		}
		out := make([]*dbtypes.JoinConfig, len(chain))
		for i, c := range chain {
			out[i] = c.Clone()
		}
		return out, nil
	}
	return nil, nil
}

// chain returns the configurations needed to join name, parents first.
func (s *Select) chain(name string) []*dbtypes.JoinConfig {
	var out []*dbtypes.JoinConfig
	for depth := 0; name != "" && depth <= len(s.joins); depth++ {
		j, ok := s.joins[name]
		if !ok {
			break
		}
		out = append([]*dbtypes.JoinConfig{j.cfg}, out...)
		name = j.cfg.LocalJoin
	}
	return out
}

// listColumns expands a wildcard to the non-heavy columns of the table behind join.
func (s *Select) listColumns(join string, _ *dbtypes.JoinConfig) ([]string, error) {
	schema := s.schemaOf(join)
	if schema == nil {
		return nil, nil
	}
	var names []string
	for _, c := range schema.Columns() {
		if c.IsHeavy() {
			continue
		}
		names = append(names, c.Name())
	}
	return names, nil
}

// checkColumn rejects columns missing from the table they are qualified with. References
// to unknown joins are left to join resolution.
func (s *Select) checkColumn(ref *columns.ColumnReference) error {
	if ref.IsExpression() {
		return nil
	}
	schema := s.schemaOf(ref.JoinName)
	if schema == nil {
		schema = s.lookupRelationSchema(ref.JoinName)
	}
	if schema == nil || schema.HasColumn(ref.Name) {
		return nil
	}
	return &dbtypes.InvalidColumnReferenceError{
		Column: ref.Name,
		Reason: fmt.Sprintf("column does not exist in %s", schema.TableName()),
	}
}

// lookupRelationSchema finds the schema a not yet joined relation would bring in.
func (s *Select) lookupRelationSchema(name string) dbtypes.TableSchema {
	roots := append([]string{""}, s.declared...)
	roots = append(roots, s.materialized...)
	for _, parent := range roots {
		owner := s.schemaOf(parent)
		if owner == nil {
			continue
		}
		if rel, ok := owner.Relation(name); ok && rel.Type() != dbtypes.HasMany {
			return rel.ForeignTable()
		}
	}
	return nil
}
