// Package schema provides table metadata for the relationship-aware query builder.
//
// Tables are declared from structs with `db` tags or built by hand, and relations between
// them are declared once at setup time:
//
//	type User struct {
//	    ID   int64  `db:"id,pk"`
//	    Name string `db:"name"`
//	    Bio  string `db:"bio,heavy"`
//	}
//
//	users := schema.Register(&User{}, "users")
//	posts := schema.Register(&Post{}, "posts").BelongsTo("Owner", users, "owner_id")
//
// A Table is safe for concurrent reads once its relations are declared.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// Column describes one column of a Table.
type Column struct {
	// FieldName is the Go struct field name, empty for hand-built tables.
	FieldName string
	// FieldIndex is the reflect index path of the field.
	FieldIndex []int
	// FieldType is the reflect.Type of the field.
	FieldType reflect.Type

	name       string
	primaryKey bool
	heavy      bool
}

// Col declares a column for NewTable.
func Col(name string) *Column {
	return &Column{name: name}
}

// PK marks the column as the primary key.
func (c *Column) PK() *Column {
	c.primaryKey = true
	return c
}

// Heavy excludes the column from wildcard expansion unless it is named explicitly.
func (c *Column) Heavy() *Column {
	c.heavy = true
	return c
}

// Name returns the database column name.
func (c *Column) Name() string { return c.name }

// IsHeavy reports whether the column is left out of wildcard expansion.
func (c *Column) IsHeavy() bool { return c.heavy }

// IsPrimaryKey reports whether the column is the primary key.
func (c *Column) IsPrimaryKey() bool { return c.primaryKey }

// Table is the metadata of one database table.
type Table struct {
	// TypeName is the name of the struct the table was parsed from.
	TypeName string

	schemaName string
	tableName  string
	primaryKey string
	columns    []*Column
	byName     map[string]*Column
	byField    map[string]*Column

	mu        sync.RWMutex
	relations map[string]*Relation
}

var _ dbtypes.TableSchema = (*Table)(nil)

// NewTable builds a table by hand. name may be "schema.table". The primary key is the
// column marked with PK, or "id" when present.
//
// Panics on an invalid or duplicate column name.
func NewTable(name string, cols ...*Column) *Table {
	t, err := newTable(name, cols)
	if err != nil {
		panic(err.Error())
	}
	return t
}

func newTable(name string, cols []*Column) (*Table, error) {
	t := &Table{
		byName:    make(map[string]*Column, len(cols)),
		byField:   make(map[string]*Column, len(cols)),
		relations: make(map[string]*Relation),
	}
	t.tableName = strings.TrimSpace(name)
	if dot := strings.Index(t.tableName, "."); dot >= 0 {
		t.schemaName, t.tableName = t.tableName[:dot], t.tableName[dot+1:]
	}
	if !identifierPattern.MatchString(t.tableName) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	if t.schemaName != "" && !identifierPattern.MatchString(t.schemaName) {
		return nil, fmt.Errorf("invalid schema name %q", t.schemaName)
	}

	for _, c := range cols {
		if c == nil {
			continue
		}
		if !identifierPattern.MatchString(c.name) {
			return nil, fmt.Errorf("invalid column name %q in table %s", c.name, t.tableName)
		}
		if _, dup := t.byName[c.name]; dup {
			return nil, fmt.Errorf("duplicate column %q in table %s", c.name, t.tableName)
		}
		if c.primaryKey {
			if t.primaryKey != "" {
				return nil, fmt.Errorf("table %s has more than one primary key column (%s, %s)", t.tableName, t.primaryKey, c.name)
			}
			t.primaryKey = c.name
		}
		t.columns = append(t.columns, c)
		t.byName[c.name] = c
		if c.FieldName != "" {
			t.byField[c.FieldName] = c
		}
	}
	if len(t.columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", t.tableName)
	}
	if t.primaryKey == "" {
		if c, ok := t.byName["id"]; ok {
			c.primaryKey = true
			t.primaryKey = c.name
		}
	}
	return t, nil
}

// TableName returns the unqualified table name.
func (t *Table) TableName() string { return t.tableName }

// SchemaName returns the database schema, empty when unqualified.
func (t *Table) SchemaName() string { return t.schemaName }

// QualifiedName returns "schema.table", or the table name when there is no schema.
func (t *Table) QualifiedName() string {
	if t.schemaName == "" {
		return t.tableName
	}
	return t.schemaName + "." + t.tableName
}

// PrimaryKey returns the primary key column, empty when the table has none.
func (t *Table) PrimaryKey() string { return t.primaryKey }

// HasColumn reports whether name is a column of the table.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Columns returns the columns in declaration order.
func (t *Table) Columns() []dbtypes.ColumnDescriptor {
	out := make([]dbtypes.ColumnDescriptor, len(t.columns))
	for i, c := range t.columns {
		out[i] = c
	}
	return out
}

// ColumnNames returns the column names in declaration order, heavy columns only when
// includeHeavy is set.
func (t *Table) ColumnNames(includeHeavy bool) []string {
	out := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if c.heavy && !includeHeavy {
			continue
		}
		out = append(out, c.name)
	}
	return out
}

// Field returns the column name mapped to a struct field.
//
// Panics if the field is not mapped (fail-fast for development-time typos).
func (t *Table) Field(fieldName string) string {
	c, ok := t.byField[fieldName]
	if !ok {
		panic(fmt.Sprintf("column field %q not found in type %s (available fields: %s)",
			fieldName, t.TypeName, t.availableFieldsForError()))
	}
	return c.name
}

// Fields returns the column names mapped to several struct fields, ready for Columns(...).
func (t *Table) Fields(fieldNames ...string) []any {
	out := make([]any, len(fieldNames))
	for i, f := range fieldNames {
		out[i] = t.Field(f)
	}
	return out
}

// Values extracts column values from a struct of the table's type. The primary key is
// skipped when it holds its zero value, so that the database can generate it.
func (t *Table) Values(structPtr any) (map[string]any, error) {
	rv := reflect.ValueOf(structPtr)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("values of %s: nil pointer", t.tableName)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || (t.TypeName != "" && rv.Type().Name() != t.TypeName) {
		return nil, fmt.Errorf("values of %s: expected struct %s, got %T", t.tableName, t.TypeName, structPtr)
	}

	out := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		if c.FieldIndex == nil {
			continue
		}
		fv, err := rv.FieldByIndexErr(c.FieldIndex)
		if err != nil {
			continue
		}
		if c.primaryKey && fv.IsZero() {
			continue
		}
		out[c.name] = fv.Interface()
	}
	return out, nil
}

func (t *Table) availableFieldsForError() string {
	fields := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if c.FieldName != "" {
			fields = append(fields, c.FieldName)
		}
	}
	return strings.Join(fields, ", ")
}
