package logger

import (
	"net/url"
	"reflect"
	"strings"
)

const (
	// DefaultMaxDepth bounds recursion when filtering nested values
	DefaultMaxDepth = 8
	// DefaultMaskValue replaces sensitive values
	DefaultMaskValue = "***"
)

// FilterConfig defines which field names are masked in log output
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively as substrings of field names
	SensitiveFields []string
	MaskValue       string
}

// DefaultFilterConfig returns field names commonly carrying credentials
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd",
			"secret", "api_key", "apikey",
			"token", "authorization", "credential",
			"dsn", "connectionstring", "connection_string", "database_url",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose field names look sensitive
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter; a nil config selects DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value when key is sensitive. Connection URLs keep their structure
// with only the password replaced.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if !f.isSensitiveField(key) || value == "" {
		return value
	}
	if masked, ok := f.maskURL(value); ok {
		return masked
	}
	return f.config.MaskValue
}

// FilterValue masks value when key is sensitive and recurses into maps, slices and structs.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filter(key, value, make(map[uintptr]struct{}), DefaultMaxDepth)
}

// FilterFields filters every entry of fields
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) filter(key string, value any, visited map[uintptr]struct{}, depth int) any {
	if f.isSensitiveField(key) {
		if s, ok := value.(string); ok {
			return f.FilterString(key, s)
		}
		return f.config.MaskValue
	}
	if value == nil || depth <= 0 {
		return value
	}

	if m, ok := value.(map[string]any); ok {
		filtered := make(map[string]any, len(m))
		for k, v := range m {
			filtered[k] = f.filter(k, v, visited, depth-1)
		}
		return filtered
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return value
		}
		return f.filterSlice(key, rv, visited, depth)
	case reflect.Struct:
		return f.filterStruct(rv, visited, depth)
	case reflect.Pointer:
		if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return value
		}
		ptr := rv.Pointer()
		if _, seen := visited[ptr]; seen {
			return value
		}
		visited[ptr] = struct{}{}
		defer delete(visited, ptr)
		return f.filterStruct(rv.Elem(), visited, depth)
	default:
		return value
	}
}

func (f *SensitiveDataFilter) filterSlice(key string, rv reflect.Value, visited map[uintptr]struct{}, depth int) any {
	filtered := make([]any, rv.Len())
	changed := false
	for i := range filtered {
		elem := rv.Index(i).Interface()
		filtered[i] = f.filter(key, elem, visited, depth-1)
		if !changed && !shallowEqual(filtered[i], elem) {
			changed = true
		}
	}
	if !changed {
		return rv.Interface()
	}
	return filtered
}

// filterStruct renders exported fields as a map keyed by their json names.
func (f *SensitiveDataFilter) filterStruct(rv reflect.Value, visited map[uintptr]struct{}, depth int) map[string]any {
	typ := rv.Type()
	result := make(map[string]any, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonFieldName(&field)
		if name == "" {
			continue
		}
		result[name] = f.filter(name, rv.Field(i).Interface(), visited, depth-1)
	}
	return result
}

func jsonFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func shallowEqual(a, b any) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || ta == nil || !ta.Comparable() {
		return ta == nil && b == nil
	}
	return a == b
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

// maskURL replaces the password of a URL-shaped value, reporting false for anything else.
func (f *SensitiveDataFilter) maskURL(value string) (string, bool) {
	if !strings.Contains(value, "://") {
		return "", false
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" {
		return "", false
	}
	if parsed.User == nil {
		return value, true
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return value, true
	}
	parsed.User = url.UserPassword(parsed.User.Username(), "MASKED")
	return strings.Replace(parsed.String(), ":MASKED@", ":"+f.config.MaskValue+"@", 1), true
}
