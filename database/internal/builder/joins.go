package builder

import (
	"fmt"
	"strings"

	"github.com/gaborage/go-bricks-sql/database/internal/conditions"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

func (b *build) addJoin(cfg *dbtypes.JoinConfig) {
	b.joins = append(b.joins, cfg)
	b.joinShort[cfg.Name] = b.aliases.Table(cfg.Name)
}

func (b *build) findJoin(name string) *dbtypes.JoinConfig {
	for _, j := range b.joins {
		if j.Name == name {
			return j
		}
	}
	return nil
}

// ensureJoin returns the short alias of join, asking the join resolver to materialize it
// when it is not declared.
func (b *build) ensureJoin(name, context string) (string, error) {
	if short, ok := b.joinShort[name]; ok {
		return short, nil
	}
	if b.q.joinResolver != nil {
		cfgs, err := b.q.joinResolver(name)
		if err != nil {
			return "", err
		}
		for _, cfg := range cfgs {
			if cfg == nil || b.findJoin(cfg.Name) != nil {
				continue
			}
			cp := cfg.Clone()
			if err := b.q.validateJoin(cp); err != nil {
				return "", err
			}
			b.addJoin(cp)
		}
		if short, ok := b.joinShort[name]; ok {
			return short, nil
		}
	}
	return "", &dbtypes.MissingJoinError{Join: name, Context: context}
}

// orderedJoins returns the joins with every parent ahead of its children, otherwise in
// declaration order. Parents that are referenced but not declared are materialized.
func (b *build) orderedJoins() ([]*dbtypes.JoinConfig, error) {
	placed := make(map[string]bool, len(b.joins))
	out := make([]*dbtypes.JoinConfig, 0, len(b.joins))

	var visit func(j *dbtypes.JoinConfig, path map[string]bool) error
	visit = func(j *dbtypes.JoinConfig, path map[string]bool) error {
		if placed[j.Name] {
			return nil
		}
		if path[j.Name] {
			return fmt.Errorf("join %q depends on itself", j.Name)
		}
		path[j.Name] = true
		if j.LocalJoin != "" && j.LocalJoin != b.q.alias {
			if _, err := b.ensureJoin(j.LocalJoin, "join "+j.Name); err != nil {
				return err
			}
			if err := visit(b.findJoin(j.LocalJoin), path); err != nil {
				return err
			}
		}
		placed[j.Name] = true
		out = append(out, j)
		return nil
	}

	for i := 0; i < len(b.joins); i++ {
		if err := visit(b.joins[i], make(map[string]bool)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// onClause renders Name.ForeignColumn = LocalJoin.LocalColumn followed by the extra
// conditions, whose bare columns refer to the joined table.
func (b *build) onClause(j *dbtypes.JoinConfig) (string, error) {
	b.context = "join " + j.Name
	left := b.d.QuoteIdentifier(b.joinShort[j.Name]) + "." + b.d.QuoteIdentifier(j.ForeignColumn)
	parent, err := b.qualifier(j.LocalJoin, b.context)
	if err != nil {
		return "", err
	}
	on := left + " = " + parent + "." + b.d.QuoteIdentifier(j.LocalColumn)

	if len(j.Conditions) > 0 {
		b.onJoin = j.Name
		extra, err := b.compiler.Compile(j.Conditions, conditions.And)
		b.onJoin = ""
		if err != nil {
			return "", err
		}
		if extra != "" {
			on += " AND " + extra
		}
	}
	return on, nil
}

// joinsSQL renders the JOIN clauses. When prune is set, LEFT joins are left out unless
// one of the clause texts references them or a kept join depends on them.
func (b *build) joinsSQL(prune bool, clauses ...string) ([]string, error) {
	ordered, err := b.orderedJoins()
	if err != nil {
		return nil, err
	}

	rendered := make(map[string]string, len(ordered))
	onSQL := make(map[string]string, len(ordered))
	for _, j := range ordered {
		table, err := b.d.QuoteTable(j.ForeignSchema, j.ForeignTable)
		if err != nil {
			return nil, err
		}
		short := b.d.QuoteIdentifier(b.joinShort[j.Name])
		if j.Type == dbtypes.CrossJoin {
			rendered[j.Name] = "CROSS JOIN " + table + " AS " + short
			continue
		}
		on, err := b.onClause(j)
		if err != nil {
			return nil, err
		}
		onSQL[j.Name] = on
		rendered[j.Name] = string(j.Type) + " JOIN " + table + " AS " + short + " ON " + on
	}

	keep := make(map[string]bool, len(ordered))
	if prune {
		text := strings.Join(clauses, " ")
		for _, j := range ordered {
			if !j.Type.Prunable() || b.referenced(text, j.Name) {
				keep[j.Name] = true
			}
		}
		b.keepDependencies(ordered, keep, onSQL)
	}

	out := make([]string, 0, len(ordered)+len(b.q.crossJoins))
	for _, j := range ordered {
		if prune && !keep[j.Name] {
			continue
		}
		out = append(out, rendered[j.Name])
	}

	b.context = "cross join"
	for _, expr := range b.q.crossJoins {
		sql, err := b.processExpression(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, "CROSS JOIN "+expr.Interpolated(sql))
	}
	return out, nil
}

// keepDependencies grows keep until every kept join has its parent and the joins its ON
// clause references.
func (b *build) keepDependencies(ordered []*dbtypes.JoinConfig, keep map[string]bool, onSQL map[string]string) {
	for changed := true; changed; {
		changed = false
		for _, j := range ordered {
			if !keep[j.Name] {
				continue
			}
			if parent := j.LocalJoin; parent != "" && b.joinShort[parent] != "" && !keep[parent] {
				keep[parent] = true
				changed = true
			}
			for _, other := range ordered {
				if !keep[other.Name] && other.Name != j.Name && b.referenced(onSQL[j.Name], other.Name) {
					keep[other.Name] = true
					changed = true
				}
			}
		}
	}
}

// referenced reports whether text qualifies a column with the short alias of join.
func (b *build) referenced(text, join string) bool {
	return strings.Contains(text, b.d.QuoteIdentifier(b.joinShort[join])+".")
}
