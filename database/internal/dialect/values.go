package dialect

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// literalEncoder holds the per-dialect pieces of literal rendering.
type literalEncoder struct {
	quoteString func(string) (string, error)
	boolLiteral func(bool) string
	bytes       func([]byte) string
	timeLayout  string
}

// encode renders value as a SQL literal. Numbers are rendered as quoted strings so that
// every operand reaches the database through the same escaping path; both dialects coerce
// them back to the column type.
func (e literalEncoder) encode(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case dbtypes.RawExpression:
		return v.Interpolated(v.SQL), nil
	case bool:
		return e.boolLiteral(v), nil
	case string:
		return e.quoteString(v)
	case []byte:
		return e.bytes(v), nil
	case time.Time:
		return e.quoteString(v.Format(e.timeLayout))
	case int:
		return e.quoteString(strconv.FormatInt(int64(v), 10))
	case int8:
		return e.quoteString(strconv.FormatInt(int64(v), 10))
	case int16:
		return e.quoteString(strconv.FormatInt(int64(v), 10))
	case int32:
		return e.quoteString(strconv.FormatInt(int64(v), 10))
	case int64:
		return e.quoteString(strconv.FormatInt(v, 10))
	case uint:
		return e.quoteString(strconv.FormatUint(uint64(v), 10))
	case uint8:
		return e.quoteString(strconv.FormatUint(uint64(v), 10))
	case uint16:
		return e.quoteString(strconv.FormatUint(uint64(v), 10))
	case uint32:
		return e.quoteString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		return e.quoteString(strconv.FormatUint(v, 10))
	case float32:
		return e.quoteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	case float64:
		return e.quoteString(strconv.FormatFloat(v, 'g', -1, 64))
	case json.RawMessage:
		return e.quoteString(string(v))
	case driver.Valuer:
		if isNilPointer(v) {
			return "NULL", nil
		}
		inner, err := v.Value()
		if err != nil {
			return "", fmt.Errorf("failed to read driver value: %w", err)
		}
		return e.encode(inner)
	case fmt.Stringer:
		if isNilPointer(v) {
			return "NULL", nil
		}
		return e.quoteString(v.String())
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return e.encode(rv.Elem().Interface())
	case reflect.String:
		return e.quoteString(rv.String())
	case reflect.Bool:
		return e.boolLiteral(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.quoteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return e.quoteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return e.quoteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		raw, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to encode %T as JSON literal: %w", value, err)
		}
		return e.quoteString(string(raw))
	}
	return "", fmt.Errorf("cannot encode value of type %T as SQL literal", value)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// quoteParts quotes every dot-separated part of name with q, doubling embedded quotes.
func quoteParts(name string, q byte) string {
	parts := strings.Split(name, ".")
	quote := string(q)
	for i, p := range parts {
		parts[i] = quote + strings.ReplaceAll(p, quote, quote+quote) + quote
	}
	return strings.Join(parts, ".")
}

// jsonIndex reports whether key addresses an array element.
func jsonIndex(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitPathKey turns the argument of #> / #>> ("{a,b}", "a,b") into its keys.
func splitPathKey(key string) []string {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "{")
	key = strings.TrimSuffix(key, "}")
	var keys []string
	for _, k := range strings.Split(key, ",") {
		k = strings.Trim(strings.TrimSpace(k), `"'`)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

var castAliases = map[string]string{
	"int":       "SIGNED",
	"integer":   "SIGNED",
	"bigint":    "SIGNED",
	"smallint":  "SIGNED",
	"text":      "CHAR",
	"varchar":   "CHAR",
	"numeric":   "DECIMAL",
	"decimal":   "DECIMAL",
	"float":     "DOUBLE",
	"real":      "FLOAT",
	"timestamp": "DATETIME",
	"jsonb":     "JSON",
	"boolean":   "UNSIGNED",
	"bool":      "UNSIGNED",
}

var knownJSONOperators = map[string]bool{"->": true, "->>": true, "#>": true, "#>>": true}

func validateJSONPath(path []JSONStep) error {
	if len(path) == 0 {
		return fmt.Errorf("empty JSON path")
	}
	for _, step := range path {
		if !knownJSONOperators[step.Operator] {
			return fmt.Errorf("unknown JSON path operator %q", step.Operator)
		}
		if strings.TrimSpace(step.Key) == "" {
			return fmt.Errorf("empty JSON path key after %q", step.Operator)
		}
	}
	return nil
}

// ListValues reports whether value is a list operand and returns its elements.
// Byte slices and JSON documents are scalars.
func ListValues(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil, []byte, json.RawMessage, string:
		return nil, false
	case []any:
		return v, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func quoteAll(d Dialect, items []any) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		q, err := d.QuoteValue(item)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// QuoteList renders items as a comma separated list of literals.
func QuoteList(d Dialect, items []any) (string, error) {
	quoted, err := quoteAll(d, items)
	if err != nil {
		return "", err
	}
	return strings.Join(quoted, ", "), nil
}
