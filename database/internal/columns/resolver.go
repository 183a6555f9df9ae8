package columns

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

var castPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ]*(\(\s*\d+\s*(,\s*\d+\s*)?\))?(\[\])*$`)

var jsonOperators = []string{"#>>", "->>", "#>", "->"}

// ColumnChecker validates a parsed, non-wildcard reference against schema metadata.
type ColumnChecker func(ref *ColumnReference) error

type cacheKey struct {
	column string
	alias  string
	join   string
}

// Resolver parses column mentions for one query build and memoizes the results.
// It is not safe for concurrent use.
type Resolver struct {
	dialect    dialect.Dialect
	tableAlias string
	checker    ColumnChecker
	cache      map[cacheKey]*ColumnReference
}

// NewResolver creates a resolver for a query whose base table is known as tableAlias.
// References to tableAlias are normalized to local columns.
func NewResolver(d dialect.Dialect, tableAlias string) *Resolver {
	return &Resolver{
		dialect:    d,
		tableAlias: tableAlias,
		cache:      make(map[cacheKey]*ColumnReference),
	}
}

// SetChecker installs a schema-aware existence check.
func (r *Resolver) SetChecker(checker ColumnChecker) {
	r.checker = checker
}

// Analyze parses column (a string or a RawExpression) with an optional explicit alias and
// join. context names the query part being built and is used in error messages.
func (r *Resolver) Analyze(column any, alias, join, context string) (*ColumnReference, error) {
	switch c := column.(type) {
	case string:
		return r.analyzeString(c, alias, join, context)
	case dbtypes.RawExpression:
		return r.analyzeExpression(c, alias, context)
	case *dbtypes.RawExpression:
		if c == nil {
			return nil, invalid(fmt.Sprint(column), context, "nil expression")
		}
		return r.analyzeExpression(*c, alias, context)
	}
	return nil, invalid(fmt.Sprint(column), context, fmt.Sprintf("unsupported column type %T", column))
}

func (r *Resolver) analyzeExpression(expr dbtypes.RawExpression, alias, context string) (*ColumnReference, error) {
	if alias == "" {
		alias = expr.Alias
	}
	if alias != "" && !r.dialect.IsValidIdentifier(alias) {
		return nil, invalid(expr.SQL, context, fmt.Sprintf("alias %q is not a valid identifier", alias))
	}
	e := expr
	return &ColumnReference{Expression: &e, Alias: alias}, nil
}

func (r *Resolver) analyzeString(column, alias, join, context string) (*ColumnReference, error) {
	key := cacheKey{column: column, alias: alias, join: join}
	if ref, ok := r.cache[key]; ok {
		return ref, nil
	}

	ref, err := r.parse(column, alias, join, context)
	if err != nil {
		return nil, err
	}
	if r.checker != nil && !ref.IsWildcard() {
		if err := r.checker(ref); err != nil {
			var invalidRef *dbtypes.InvalidColumnReferenceError
			if errors.As(err, &invalidRef) && invalidRef.Context == "" {
				invalidRef.Context = context
			}
			return nil, err
		}
	}
	r.cache[key] = ref
	return ref, nil
}

func (r *Resolver) parse(column, alias, join, context string) (*ColumnReference, error) {
	text := strings.TrimSpace(column)
	if text == "" {
		return nil, invalid(column, context, "column cannot be empty")
	}
	if alias != "" && !r.dialect.IsValidIdentifier(alias) {
		return nil, invalid(column, context, fmt.Sprintf("alias %q is not a valid identifier", alias))
	}
	if join != "" && !r.dialect.IsValidIdentifier(join) {
		return nil, invalid(column, context, fmt.Sprintf("join name %q is not a valid identifier", join))
	}

	ref := &ColumnReference{Alias: alias, JoinName: join}

	if idx := strings.LastIndex(text, "::"); idx >= 0 && !insideQuotes(text, idx) {
		cast := strings.TrimSpace(text[idx+2:])
		if !castPattern.MatchString(cast) {
			return nil, invalid(column, context, fmt.Sprintf("invalid type cast %q", cast))
		}
		ref.TypeCast = cast
		text = strings.TrimSpace(text[:idx])
	}

	base, path, err := splitJSONPath(text)
	if err != nil {
		return nil, invalid(column, context, err.Error())
	}
	ref.JSONPath = path

	if dot := strings.Index(base, "."); dot >= 0 {
		inline := strings.TrimSpace(base[:dot])
		if join != "" && inline != join {
			return nil, invalid(column, context, fmt.Sprintf("conflicting join names %q and %q", inline, join))
		}
		if !r.dialect.IsValidIdentifier(inline) {
			return nil, invalid(column, context, fmt.Sprintf("join name %q is not a valid identifier", inline))
		}
		ref.JoinName = inline
		base = strings.TrimSpace(base[dot+1:])
	}
	if ref.JoinName == r.tableAlias {
		ref.JoinName = ""
	}

	if base == Wildcard || base == "{*}" {
		if alias != "" || len(path) > 0 || ref.TypeCast != "" {
			return nil, invalid(column, context, "wildcard cannot carry an alias, a JSON path or a cast")
		}
		ref.Name = Wildcard
		return ref, nil
	}

	if !r.dialect.IsValidIdentifier(base) {
		return nil, invalid(column, context, fmt.Sprintf("%q is not a valid identifier", base))
	}
	ref.Name = base
	return ref, nil
}

// splitJSONPath splits "data->'a'->>'b'" into its root and steps. Operators inside quoted
// keys are not separators.
func splitJSONPath(text string) (string, []dialect.JSONStep, error) {
	var (
		root    string
		steps   []dialect.JSONStep
		pending string
		start   int
		quote   byte
	)
	flush := func(end int) error {
		segment := strings.TrimSpace(text[start:end])
		if pending == "" {
			root = segment
			return nil
		}
		key := strings.Trim(segment, `'"`)
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("JSON path segment after %q cannot be empty", pending)
		}
		steps = append(steps, dialect.JSONStep{Operator: pending, Key: key})
		return nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		for _, op := range jsonOperators {
			if strings.HasPrefix(text[i:], op) {
				if err := flush(i); err != nil {
					return "", nil, err
				}
				pending = op
				start = i + len(op)
				i += len(op) - 1
				break
			}
		}
	}
	if quote != 0 {
		return "", nil, fmt.Errorf("unterminated quote in JSON path")
	}
	if err := flush(len(text)); err != nil {
		return "", nil, err
	}
	return root, steps, nil
}

func insideQuotes(text string, pos int) bool {
	var quote byte
	for i := 0; i < pos; i++ {
		c := text[i]
		switch {
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		}
	}
	return quote != 0
}

func invalid(column, context, reason string) error {
	return &dbtypes.InvalidColumnReferenceError{Column: column, Context: context, Reason: reason}
}
