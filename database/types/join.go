//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

// JoinType is the SQL join flavor.
type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
	RightJoin JoinType = "RIGHT"
	CrossJoin JoinType = "CROSS"
)

// Prunable reports whether a join of this type can be dropped from COUNT/EXISTS queries
// without changing the number of rows. Only LEFT joins qualify.
func (t JoinType) Prunable() bool {
	return t == LeftJoin
}

// JoinConfig declares one joined table of a query.
//
// The ON clause is LocalJoin.LocalColumn = Name.ForeignColumn, AND-ed with Conditions.
// Bare column names inside Conditions refer to the joined table itself.
//
// Example:
//
//	types.JoinConfig{
//	    Name:          "Owner",
//	    Type:          types.LeftJoin,
//	    LocalColumn:   "owner_id",
//	    ForeignTable:  "users",
//	    ForeignColumn: "id",
//	    Columns:       []any{"id", "email"},
//	}
type JoinConfig struct {
	// Name identifies the join inside the query. It must be a valid identifier and unique
	// per query (it may not collide with the base table alias either).
	Name string
	Type JoinType

	// LocalJoin is the join that owns LocalColumn. Empty means the base table.
	// It also determines where the join's data is nested in denormalized rows.
	LocalJoin   string
	LocalColumn string

	ForeignSchema string
	ForeignTable  string
	ForeignColumn string

	// PrimaryKey is the foreign table column used to detect "no related row" when
	// denormalizing outer joins. Defaults to ForeignColumn.
	PrimaryKey string

	// Columns lists columns selected from the joined table (strings or RawExpression).
	Columns []any

	// Conditions are extra ON predicates.
	Conditions Conditions
}

// Clone returns a deep copy of the join configuration.
func (j *JoinConfig) Clone() *JoinConfig {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Columns != nil {
		cp.Columns = append([]any(nil), j.Columns...)
	}
	cp.Conditions = j.Conditions.Clone()
	return &cp
}

// PrimaryKeyColumn returns the column used for null-row detection.
func (j *JoinConfig) PrimaryKeyColumn() string {
	if j.PrimaryKey != "" {
		return j.PrimaryKey
	}
	return j.ForeignColumn
}
