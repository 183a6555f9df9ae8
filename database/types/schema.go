//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

// RelationType classifies how a related table maps onto the owning table.
type RelationType string

const (
	// BelongsTo: the local table holds a foreign key to the related table.
	BelongsTo RelationType = "belongs_to"
	// HasOne: the related table holds a foreign key back to the local table, at most one row.
	HasOne RelationType = "has_one"
	// HasMany: one-to-many. Cannot be joined without multiplying rows.
	HasMany RelationType = "has_many"
)

// ColumnDescriptor describes one column of a table schema.
type ColumnDescriptor interface {
	Name() string
	// IsHeavy reports whether the column is excluded from wildcard expansion by default
	// (large text, blobs, documents).
	IsHeavy() bool
}

// RelationDescriptor describes a relation from one table schema to another.
type RelationDescriptor interface {
	Name() string
	Type() RelationType
	LocalColumn() string
	ForeignTable() TableSchema
	ForeignColumn() string
	JoinType() JoinType
	// Conditions are extra ON predicates; bare columns refer to the related table.
	Conditions() Conditions
}

// TableSchema is the schema metadata contract consumed by the relationship-aware query
// builder. Introspection, when needed, happens out of band; implementations are expected
// to be immutable once built.
type TableSchema interface {
	TableName() string
	SchemaName() string
	PrimaryKey() string
	HasColumn(name string) bool
	Columns() []ColumnDescriptor
	Relation(name string) (RelationDescriptor, bool)
}
