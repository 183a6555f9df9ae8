//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "reflect"

// Condition is a single entry of a condition tree.
//
// Keyed entries carry either a column mention with an optional trailing operator
// ("status", "age >=", "Owner.name NOT IN") or a logical grouping key ("AND", "OR") whose
// value is a nested Conditions. Positional entries have no key and carry a nested
// Conditions, a RawExpression, or a boolean-ish flag.
type Condition struct {
	Key        string
	Value      any
	Positional bool
}

// Conditions is an ordered condition tree. Order is preserved in the compiled SQL.
//
//	types.Conditions{
//	    types.Cond("id", []int{1, 2, 3}),
//	    types.Cond("OR", types.Conditions{
//	        types.Cond("name !=", nil),
//	        types.Cond("status", "active"),
//	    }),
//	}
type Conditions []Condition

// Cond creates a keyed condition entry.
func Cond(key string, value any) Condition {
	return Condition{Key: key, Value: value}
}

// Group creates a positional entry holding a nested tree compiled with the enclosing glue.
func Group(conditions Conditions) Condition {
	return Condition{Value: conditions, Positional: true}
}

// RawCond creates a positional entry holding a raw SQL predicate.
func RawCond(expr RawExpression) Condition {
	return Condition{Value: expr, Positional: true}
}

// Flag creates a positional boolean-ish entry. Flags never contribute SQL: they exist so
// callers can build trees like {..., Flag(isAdmin)} without branching.
func Flag(value any) Condition {
	return Condition{Value: value, Positional: true}
}

// IsEmpty reports whether the tree has no entries.
func (c Conditions) IsEmpty() bool {
	return len(c) == 0
}

// Add appends a keyed entry and returns the extended tree.
func (c Conditions) Add(key string, value any) Conditions {
	return append(c, Cond(key, value))
}

// Clone returns a deep copy of the tree. Nested trees and slice values are copied so the
// clone shares no mutable state with the original.
func (c Conditions) Clone() Conditions {
	if c == nil {
		return nil
	}
	out := make(Conditions, len(c))
	for i, cond := range c {
		out[i] = Condition{Key: cond.Key, Value: cloneValue(cond.Value), Positional: cond.Positional}
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Conditions:
		return val.Clone()
	case []any:
		cp := make([]any, len(val))
		for i := range val {
			cp[i] = cloneValue(val[i])
		}
		return cp
	case []byte:
		return append([]byte(nil), val...)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && !rv.IsNil() {
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		return cp.Interface()
	}
	return v
}
