// Package aliases maps long table, join and column aliases onto short identifiers that fit
// the database's identifier length limit.
//
// An Allocator lives for one query build. Mappings are deterministic for a given request
// order and injective: two different long aliases never share a short alias.
package aliases

import (
	"strconv"
	"strings"
)

const (
	compoundPrefix    = "_"
	compoundSeparator = "__"
)

type entry struct {
	prefix string
	long   string
}

// Space is one independent alias namespace.
type Space struct {
	maxLen  int
	byLong  map[string]string
	byShort map[string]entry
}

// NewSpace creates an empty namespace whose aliases never exceed maxLen bytes.
func NewSpace(maxLen int) *Space {
	return &Space{
		maxLen:  maxLen,
		byLong:  make(map[string]string),
		byShort: make(map[string]entry),
	}
}

// Short returns the short alias for long, allocating one on first use. An issued short
// alias passed back as long maps to itself.
func (s *Space) Short(long string) string {
	if short, ok := s.byLong[long]; ok {
		return short
	}
	if _, ok := s.byShort[long]; ok {
		return long
	}
	return s.allocate("", long)
}

// Declare returns the short alias for a declared name. Unlike Short, a name equal to a short
// alias already issued for another name is a collision and gets a numeric suffix.
func (s *Space) Declare(long string) string {
	return s.allocate("", long)
}

// Long returns the long alias an issued short alias stands for.
func (s *Space) Long(short string) (string, bool) {
	e, ok := s.byShort[short]
	if !ok {
		return "", false
	}
	return e.long, true
}

// Len returns the number of issued aliases.
func (s *Space) Len() int {
	return len(s.byShort)
}

func (s *Space) allocate(prefix, long string) string {
	key := prefix + long
	if short, ok := s.byLong[key]; ok {
		return short
	}

	budget := s.maxLen - len(prefix)
	short := prefix + Shorten(long, budget)
	for n := 2; ; n++ {
		if _, taken := s.byShort[short]; !taken {
			break
		}
		suffix := strconv.Itoa(n)
		short = prefix + truncate(Shorten(long, budget), budget-len(suffix)) + suffix
	}

	s.byLong[key] = short
	s.byShort[short] = entry{prefix: prefix, long: long}
	return short
}

// Allocator holds the alias spaces of one query build.
type Allocator struct {
	maxLen int
	tables *Space
	// compound holds the table part of column compounds, which is bounded so that
	// _{table}__{column} leaves room for the column.
	compound *Space
	columns  *Space
}

// New creates an allocator for a dialect whose identifiers are limited to maxLen bytes.
func New(maxLen int) *Allocator {
	compoundLen := (maxLen - len(compoundPrefix) - len(compoundSeparator)) / 2
	return &Allocator{
		maxLen:   maxLen,
		tables:   NewSpace(maxLen),
		compound: NewSpace(compoundLen),
		columns:  NewSpace(maxLen),
	}
}

// MaxLength returns the identifier length limit.
func (a *Allocator) MaxLength() int {
	return a.maxLen
}

// Table declares a table or join name and returns its short alias. Distinct names always
// get distinct aliases, even when a name equals an alias issued earlier.
func (a *Allocator) Table(long string) string {
	return a.tables.Declare(long)
}

// TableLong reverses Table.
func (a *Allocator) TableLong(short string) (string, bool) {
	return a.tables.Long(short)
}

// Column returns the compound alias _{table}__{column} used to select a column of a joined
// table. Long table aliases and columns are shortened to fit.
func (a *Allocator) Column(tableShort, column string) string {
	part := a.compound.Declare(tableShort)
	return a.columns.allocate(compoundPrefix+part+compoundSeparator, column)
}

// Alias returns the short form of a plain result alias.
func (a *Allocator) Alias(long string) string {
	return a.columns.Short(long)
}

// AliasLong reverses Alias and Column.
func (a *Allocator) AliasLong(short string) (string, bool) {
	return a.columns.Long(short)
}

// Resolve reverses a column compound into the long table alias and the column name.
// Compounds that were not issued by this allocator are parsed by pattern, with the table
// part mapped back through the table space.
func (a *Allocator) Resolve(alias string) (table, column string, ok bool) {
	if e, issued := a.columns.byShort[alias]; issued && e.prefix != "" {
		part := strings.TrimSuffix(strings.TrimPrefix(e.prefix, compoundPrefix), compoundSeparator)
		tableShort := a.compoundTable(part)
		if long, found := a.tables.Long(tableShort); found {
			return long, e.long, true
		}
		return tableShort, e.long, true
	}

	if !strings.HasPrefix(alias, compoundPrefix) || len(alias) < 4 {
		return "", "", false
	}
	idx := strings.Index(alias[1:], compoundSeparator)
	if idx <= 0 {
		return "", "", false
	}
	part := alias[1 : idx+1]
	column = alias[idx+1+len(compoundSeparator):]
	if column == "" {
		return "", "", false
	}
	table, ok = a.tables.Long(a.compoundTable(part))
	if !ok {
		return "", "", false
	}
	return table, column, true
}

// compoundTable maps the table part of a compound back to the table short alias.
func (a *Allocator) compoundTable(part string) string {
	if tableShort, ok := a.compound.Long(part); ok {
		return tableShort
	}
	return part
}

// Shorten fits long into limit bytes: vowels after the first character are removed left
// to right until it fits, then the remainder is truncated.
func Shorten(long string, limit int) string {
	if limit < 1 {
		limit = 1
	}
	if len(long) <= limit {
		return long
	}

	b := []byte(long)
	for i := 1; i < len(b) && len(b) > limit; {
		if isVowel(b[i]) {
			b = append(b[:i], b[i+1:]...)
			continue
		}
		i++
	}
	return truncate(string(b), limit)
}

func truncate(s string, limit int) string {
	if limit < 1 {
		limit = 1
	}
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}
