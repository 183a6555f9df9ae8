package schema

import (
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry caches parsed tables per struct type and table name.
// Struct types are parsed on first use and cached forever; concurrent first uses of the
// same type share one parse.
type Registry struct {
	tables sync.Map // registryKey -> *Table
	group  singleflight.Group
}

type registryKey struct {
	typ   reflect.Type
	table string
}

var globalRegistry = &Registry{}

// Register returns the table parsed from structPtr's `db` tags, parsing it on first use.
// Calls with the same struct type and table name return the same *Table, so relations
// declared on it are shared.
//
// Panics if:
//   - structPtr is not a pointer to a struct
//   - No fields with `db` tags are found
//   - Any db tag is malformed or contains dangerous SQL characters
func Register(structPtr any, table string) *Table {
	t, err := globalRegistry.Get(structPtr, table)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// Lookup returns a table previously registered for structPtr's type under table.
func Lookup(structPtr any, table string) (*Table, bool) {
	return globalRegistry.Lookup(structPtr, table)
}

// Get returns the table for structPtr's type, parsing it on first use.
func (r *Registry) Get(structPtr any, table string) (*Table, error) {
	key, err := keyOf(structPtr, table)
	if err != nil {
		return nil, err
	}

	// Fast path: lock-free read after first write.
	if cached, ok := r.tables.Load(key); ok {
		return cached.(*Table), nil
	}

	result, err, _ := r.group.Do(key.typ.String()+"|"+table, func() (any, error) {
		if cached, ok := r.tables.Load(key); ok {
			return cached, nil
		}
		t, err := parseStruct(structPtr, table)
		if err != nil {
			return nil, err
		}
		actual, _ := r.tables.LoadOrStore(key, t)
		return actual, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse struct %s for table %s: %w", key.typ.Name(), table, err)
	}
	return result.(*Table), nil
}

// Lookup returns a cached table without parsing.
func (r *Registry) Lookup(structPtr any, table string) (*Table, bool) {
	key, err := keyOf(structPtr, table)
	if err != nil {
		return nil, false
	}
	cached, ok := r.tables.Load(key)
	if !ok {
		return nil, false
	}
	return cached.(*Table), true
}

// Clear removes all cached tables.
// WARNING: Only call this in tests, not production code.
func (r *Registry) Clear() {
	r.tables.Range(func(key, _ any) bool {
		r.tables.Delete(key)
		return true
	})
}

// ClearGlobalRegistry clears the global registry.
// WARNING: Only call this in tests to reset state between test cases.
func ClearGlobalRegistry() {
	globalRegistry.Clear()
}

func keyOf(structPtr any, table string) (registryKey, error) {
	t := reflect.TypeOf(structPtr)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return registryKey{}, fmt.Errorf("schema expects a pointer to struct, got %T", structPtr)
	}
	return registryKey{typ: t.Elem(), table: table}, nil
}
