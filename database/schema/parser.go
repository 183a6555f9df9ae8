package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

const (
	tagName     = "db"
	optionPK    = "pk"
	optionHeavy = "heavy"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseStruct builds a table from the `db:"name[,pk][,heavy]"` tags of a struct.
// Exported fields of embedded structs are included; db:"-" skips a field.
func parseStruct(structPtr any, table string) (*Table, error) {
	rv := reflect.ValueOf(structPtr)
	if rv.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("parseStruct expects a pointer to struct, got %T", structPtr)
	}
	rt := rv.Type().Elem()
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("parseStruct expects a pointer to struct, got pointer to %s", rt.Kind())
	}

	cols, err := collectColumns(rt, nil)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no fields with `db` tags found in struct %s", rt.Name())
	}

	t, err := newTable(table, cols)
	if err != nil {
		return nil, err
	}
	t.TypeName = rt.Name()
	return t, nil
}

func collectColumns(rt reflect.Type, index []int) ([]*Column, error) {
	var cols []*Column
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		path := append(append([]int(nil), index...), i)

		dbTag := field.Tag.Get(tagName)
		if field.Anonymous && dbTag == "" {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				nested, err := collectColumns(ft, path)
				if err != nil {
					return nil, err
				}
				cols = append(cols, nested...)
			}
			continue
		}

		if !field.IsExported() || dbTag == "" || dbTag == "-" {
			continue
		}

		col, err := parseTag(dbTag, rt.Name(), field.Name)
		if err != nil {
			return nil, err
		}
		col.FieldName = field.Name
		col.FieldIndex = path
		col.FieldType = field.Type
		cols = append(cols, col)
	}
	return cols, nil
}

// parseTag validates a db tag and splits its options.
func parseTag(tag, structName, fieldName string) (*Column, error) {
	// SECURITY: column names end up in SQL text.
	for _, d := range []string{";", "--", "/*", "*/"} {
		if strings.Contains(tag, d) {
			return nil, fmt.Errorf("invalid db tag %q in field %s.%s: contains dangerous SQL characters %q",
				tag, structName, fieldName, d)
		}
	}
	if strings.ContainsAny(tag, "\"'`") {
		return nil, fmt.Errorf("invalid db tag %q in field %s.%s: contains quotes (quoting is applied per dialect)",
			tag, structName, fieldName)
	}

	parts := strings.Split(tag, ",")
	col := &Column{name: strings.TrimSpace(parts[0])}
	if !identifierPattern.MatchString(col.name) {
		return nil, fmt.Errorf("invalid db tag %q in field %s.%s: %q is not a valid column name",
			tag, structName, fieldName, col.name)
	}
	for _, opt := range parts[1:] {
		switch strings.TrimSpace(opt) {
		case optionPK:
			col.primaryKey = true
		case optionHeavy:
			col.heavy = true
		case "":
		default:
			return nil, fmt.Errorf("invalid db tag %q in field %s.%s: unknown option %q", tag, structName, fieldName, opt)
		}
	}
	return col, nil
}
