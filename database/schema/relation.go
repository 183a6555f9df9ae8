package schema

import (
	"fmt"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// Relation links a table to another one. It implements types.RelationDescriptor.
type Relation struct {
	name          string
	relType       dbtypes.RelationType
	localColumn   string
	foreign       *Table
	foreignColumn string
	joinType      dbtypes.JoinType
	conditions    dbtypes.Conditions
}

var _ dbtypes.RelationDescriptor = (*Relation)(nil)

// Name returns the relation name, which is also the default join name.
func (r *Relation) Name() string { return r.name }

// Type returns the relation type.
func (r *Relation) Type() dbtypes.RelationType { return r.relType }

// LocalColumn returns the column of the owning table used in the join.
func (r *Relation) LocalColumn() string { return r.localColumn }

// ForeignTable returns the related table.
func (r *Relation) ForeignTable() dbtypes.TableSchema { return r.foreign }

// ForeignColumn returns the column of the related table used in the join.
func (r *Relation) ForeignColumn() string { return r.foreignColumn }

// JoinType returns the join type used when the relation is joined.
func (r *Relation) JoinType() dbtypes.JoinType { return r.joinType }

// Conditions returns a copy of the extra ON predicates.
func (r *Relation) Conditions() dbtypes.Conditions { return r.conditions.Clone() }

// RelationOption customizes a relation declaration.
type RelationOption func(*Relation)

// WithJoinType overrides the default LEFT join.
func WithJoinType(t dbtypes.JoinType) RelationOption {
	return func(r *Relation) { r.joinType = t }
}

// WithConditions adds ON predicates; bare columns refer to the related table.
func WithConditions(conds ...dbtypes.Condition) RelationOption {
	return func(r *Relation) { r.conditions = append(r.conditions, conds...) }
}

// WithForeignColumn overrides the related table column (BelongsTo defaults to its
// primary key).
func WithForeignColumn(column string) RelationOption {
	return func(r *Relation) { r.foreignColumn = column }
}

// WithLocalColumn overrides the owning table column (HasOne and HasMany default to its
// primary key).
func WithLocalColumn(column string) RelationOption {
	return func(r *Relation) { r.localColumn = column }
}

// BelongsTo declares that t holds localColumn referencing foreign's primary key.
//
// Panics on an invalid declaration.
func (t *Table) BelongsTo(name string, foreign *Table, localColumn string, opts ...RelationOption) *Table {
	return t.declare(name, dbtypes.BelongsTo, foreign, localColumn, foreignPK(foreign), opts)
}

// HasOne declares that foreign holds foreignColumn referencing t's primary key, with at
// most one matching row.
//
// Panics on an invalid declaration.
func (t *Table) HasOne(name string, foreign *Table, foreignColumn string, opts ...RelationOption) *Table {
	return t.declare(name, dbtypes.HasOne, foreign, t.primaryKey, foreignColumn, opts)
}

// HasMany declares a one-to-many relation. It can describe the schema but cannot be joined.
//
// Panics on an invalid declaration.
func (t *Table) HasMany(name string, foreign *Table, foreignColumn string, opts ...RelationOption) *Table {
	return t.declare(name, dbtypes.HasMany, foreign, t.primaryKey, foreignColumn, opts)
}

// Relation returns the relation declared under name.
func (t *Table) Relation(name string) (dbtypes.RelationDescriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.relations[name]
	if !ok {
		return nil, false
	}
	return r, true
}

// Relations returns the declared relation names.
func (t *Table) Relations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.relations))
	for name := range t.relations {
		names = append(names, name)
	}
	return names
}

func foreignPK(foreign *Table) string {
	if foreign == nil {
		return ""
	}
	return foreign.primaryKey
}

func (t *Table) declare(name string, relType dbtypes.RelationType, foreign *Table, local, foreignCol string, opts []RelationOption) *Table {
	r := &Relation{
		name:          name,
		relType:       relType,
		localColumn:   local,
		foreign:       foreign,
		foreignColumn: foreignCol,
		joinType:      dbtypes.LeftJoin,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := t.validateRelation(r); err != nil {
		panic(err.Error())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.relations[name]; dup {
		panic(fmt.Sprintf("relation %q is already declared on table %s", name, t.tableName))
	}
	t.relations[name] = r
	return t
}

func (t *Table) validateRelation(r *Relation) error {
	if !identifierPattern.MatchString(r.name) {
		return fmt.Errorf("invalid relation name %q on table %s", r.name, t.tableName)
	}
	if r.foreign == nil {
		return fmt.Errorf("relation %s.%s has no foreign table", t.tableName, r.name)
	}
	if r.localColumn == "" || !t.HasColumn(r.localColumn) {
		return fmt.Errorf("relation %s.%s: local column %q is not a column of %s", t.tableName, r.name, r.localColumn, t.tableName)
	}
	if r.foreignColumn == "" || !r.foreign.HasColumn(r.foreignColumn) {
		return fmt.Errorf("relation %s.%s: foreign column %q is not a column of %s", t.tableName, r.name, r.foreignColumn, r.foreign.tableName)
	}
	switch r.joinType {
	case dbtypes.InnerJoin, dbtypes.LeftJoin, dbtypes.RightJoin:
	default:
		return fmt.Errorf("relation %s.%s: join type %q cannot express a relation", t.tableName, r.name, r.joinType)
	}
	return nil
}
