package builder

import (
	"github.com/gaborage/go-bricks-sql/database/internal/aliases"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// Statement is a compiled SELECT together with what is needed to reshape its flat rows.
type Statement struct {
	SQL string

	fields  map[string]field
	aliases *aliases.Allocator
	joins   map[string]*dbtypes.JoinConfig
	order   []string
}

// Denormalize nests a flat result row along the join graph: base table columns stay at the
// top level, each join becomes a nested map under its name, and joins of joins are nested
// under their parent join. A join block whose primary key came back NULL (or, when the key
// was not selected, whose values are all NULL) is omitted.
//
//	{"id": 1, "_Owner__id": 7, "_Owner__name": "ann", "_Company__id": nil}
//	// {"id": 1, "Owner": {"id": 7, "name": "ann"}}
func (s *Statement) Denormalize(row map[string]any) map[string]any {
	result := make(map[string]any, len(row))
	blocks := make(map[string]map[string]any)

	for key, value := range row {
		join, name := s.place(key)
		if join == "" {
			result[name] = value
			continue
		}
		block, ok := blocks[join]
		if !ok {
			block = make(map[string]any)
			blocks[join] = block
		}
		block[name] = value
	}

	// Deepest joins first, so a block is complete before its parent is checked.
	for _, name := range s.byDepth() {
		block, ok := blocks[name]
		if !ok {
			continue
		}
		if s.isEmptyRow(name, block) {
			continue
		}
		parent := s.parentOf(name)
		if parent == "" {
			result[name] = block
			continue
		}
		target, ok := blocks[parent]
		if !ok {
			target = make(map[string]any)
			blocks[parent] = target
		}
		target[name] = block
	}
	return result
}

// DenormalizeAll applies Denormalize to every row.
func (s *Statement) DenormalizeAll(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = s.Denormalize(row)
	}
	return out
}

// place maps a result column to its join ("" for the base table) and column name.
func (s *Statement) place(key string) (string, string) {
	if f, ok := s.fields[key]; ok {
		if _, isJoin := s.joins[f.join]; isJoin {
			return f.join, f.name
		}
		return "", f.name
	}
	if s.aliases != nil {
		if table, column, ok := s.aliases.Resolve(key); ok {
			if _, isJoin := s.joins[table]; isJoin {
				return table, column
			}
		}
	}
	return "", key
}

func (s *Statement) parentOf(join string) string {
	cfg := s.joins[join]
	if cfg == nil {
		return ""
	}
	if _, ok := s.joins[cfg.LocalJoin]; ok {
		return cfg.LocalJoin
	}
	return ""
}

func (s *Statement) depth(join string) int {
	d := 0
	for p := s.parentOf(join); p != "" && d <= len(s.joins); p = s.parentOf(p) {
		d++
	}
	return d
}

// byDepth orders join names from the deepest to the shallowest, stable within a level.
func (s *Statement) byDepth() []string {
	maxDepth := 0
	depths := make(map[string]int, len(s.order))
	for _, name := range s.order {
		d := s.depth(name)
		depths[name] = d
		if d > maxDepth {
			maxDepth = d
		}
	}
	out := make([]string, 0, len(s.order))
	for d := maxDepth; d >= 0; d-- {
		for _, name := range s.order {
			if depths[name] == d {
				out = append(out, name)
			}
		}
	}
	return out
}

func (s *Statement) isEmptyRow(join string, block map[string]any) bool {
	if len(block) == 0 {
		return true
	}
	if cfg := s.joins[join]; cfg != nil {
		if pk, selected := block[cfg.PrimaryKeyColumn()]; selected {
			return pk == nil
		}
	}
	for _, v := range block {
		if _, nested := v.(map[string]any); nested {
			return false
		}
		if v != nil {
			return false
		}
	}
	return true
}
