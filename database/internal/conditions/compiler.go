// Package conditions compiles condition trees into boolean SQL expressions.
//
// The compiler returns bare SQL without a WHERE/HAVING/ON keyword so the same trees serve
// every clause. Column quoting and raw-expression processing are delegated to the caller,
// which is how join names end up as the short aliases of the query being built.
package conditions

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	"github.com/gaborage/go-bricks-sql/database/internal/operators"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

const (
	And = "AND"
	Or  = "OR"
)

// Compiler compiles condition trees for one dialect.
type Compiler struct {
	Dialect dialect.Dialect

	// QuoteColumn renders a column mention ("status", "Owner.id", "data->>'a'"). Defaults to
	// quoting the mention as a single identifier.
	QuoteColumn func(column string) (string, error)

	// ProcessExpression renders a raw expression used as a predicate or an operand.
	// Defaults to the expression text.
	ProcessExpression func(expr dbtypes.RawExpression) (string, error)
}

// New creates a compiler with the default column and expression handling.
func New(d dialect.Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// Compile renders tree with entries joined by glue (AND or OR).
//
//	tree := dbtypes.Conditions{
//	    dbtypes.Cond("id", []int{1, 2, 3}),
//	    dbtypes.Cond("OR", dbtypes.Conditions{dbtypes.Cond("name !=", nil), dbtypes.Cond("status", "active")}),
//	}
//	// "id" IN ('1', '2', '3') AND ("name" IS NOT NULL OR "status" = 'active')
func (c *Compiler) Compile(tree dbtypes.Conditions, glue string) (string, error) {
	glue = strings.ToUpper(strings.TrimSpace(glue))
	if glue != Or {
		glue = And
	}

	parts := make([]string, 0, len(tree))
	for _, cond := range tree {
		sql, err := c.compileEntry(cond, glue)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}
	return strings.Join(parts, " "+glue+" "), nil
}

func (c *Compiler) compileEntry(cond dbtypes.Condition, glue string) (string, error) {
	if cond.Positional {
		return c.compilePositional(cond.Value, glue)
	}

	key := strings.TrimSpace(cond.Key)
	if key == "" {
		return "", nil
	}

	if upper := strings.ToUpper(key); upper == And || upper == Or {
		nested, ok := cond.Value.(dbtypes.Conditions)
		if !ok {
			return "", dbtypes.NewConditionValueError(dbtypes.ErrInvalidConditionValue, key, upper,
				fmt.Sprintf("logical group expects nested conditions, got %T", cond.Value))
		}
		return c.group(nested, upper)
	}

	return c.compileLeaf(key, cond.Value)
}

func (c *Compiler) compilePositional(value any, glue string) (string, error) {
	switch v := value.(type) {
	case dbtypes.Conditions:
		return c.group(v, glue)
	case dbtypes.RawExpression:
		return c.expression(v)
	case *dbtypes.RawExpression:
		if v == nil {
			return "", nil
		}
		return c.expression(*v)
	}
	if isFlag(value) {
		return "", nil
	}
	return "", dbtypes.NewConditionValueError(dbtypes.ErrInvalidConditionValue, "", "",
		fmt.Sprintf("positional entry must be nested conditions, a raw expression or a flag, got %T", value))
}

func (c *Compiler) group(tree dbtypes.Conditions, glue string) (string, error) {
	sql, err := c.Compile(tree, glue)
	if err != nil || sql == "" {
		return "", err
	}
	return "(" + sql + ")", nil
}

func (c *Compiler) compileLeaf(key string, value any) (string, error) {
	column, operator := operators.SplitKey(key)
	if _, nested := value.(dbtypes.Conditions); nested {
		return "", dbtypes.NewConditionValueError(dbtypes.ErrInvalidConditionValue, column, operator,
			"nested conditions require an AND/OR key or a positional group")
	}

	quoted, err := c.quoteColumn(column)
	if err != nil {
		return "", err
	}

	shape, value := shapeOf(value)
	op, err := operators.Normalize(operator, shape, c.Dialect.IsListOperator)
	if err != nil {
		var opErr *dbtypes.OperatorError
		if errors.As(err, &opErr) {
			opErr.Column = column
		}
		return "", err
	}

	if sql, handled, err := c.Dialect.AssembleCondition(quoted, op, value); handled || err != nil {
		return sql, err
	}

	spelled, err := c.Dialect.RewriteOperator(op)
	if err != nil {
		return "", fmt.Errorf("condition on %q: %w", column, err)
	}

	switch shape {
	case operators.Null:
		return quoted + " " + spelled + " NULL", nil
	case operators.Expression:
		sql, err := c.expression(value.(dbtypes.RawExpression))
		if err != nil {
			return "", err
		}
		return quoted + " " + spelled + " " + sql, nil
	case operators.List:
		items, _ := dialect.ListValues(value)
		if op == operators.Between || op == operators.NotBetween {
			return c.between(quoted, column, op, spelled, items)
		}
		if len(items) == 0 {
			return "", dbtypes.NewConditionValueError(dbtypes.ErrEmptyConditionValue, column, op, "list cannot be empty")
		}
		list, err := c.operands(items)
		if err != nil {
			return "", err
		}
		return quoted + " " + spelled + " (" + strings.Join(list, ", ") + ")", nil
	}

	literal, err := c.operand(value)
	if err != nil {
		return "", err
	}
	return quoted + " " + spelled + " " + literal, nil
}

func (c *Compiler) between(quoted, column, op, spelled string, items []any) (string, error) {
	if len(items) != 2 {
		return "", dbtypes.NewConditionValueError(dbtypes.ErrInvalidConditionValue, column, op,
			fmt.Sprintf("expects exactly 2 bounds, got %d", len(items)))
	}
	for _, item := range items {
		if isNil(item) {
			return "", dbtypes.NewConditionValueError(dbtypes.ErrInvalidConditionValue, column, op, "bounds cannot be null")
		}
		if reflect.ValueOf(item).Kind() == reflect.Bool {
			return "", dbtypes.NewConditionValueError(dbtypes.ErrInvalidConditionValue, column, op, "bounds cannot be boolean")
		}
	}
	bounds, err := c.operands(items)
	if err != nil {
		return "", err
	}
	return quoted + " " + spelled + " " + bounds[0] + " AND " + bounds[1], nil
}

func (c *Compiler) operands(items []any) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		s, err := c.operand(item)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (c *Compiler) operand(value any) (string, error) {
	switch v := value.(type) {
	case dbtypes.RawExpression:
		return c.expression(v)
	case *dbtypes.RawExpression:
		if v != nil {
			return c.expression(*v)
		}
	}
	return c.Dialect.QuoteValue(value)
}

func (c *Compiler) expression(expr dbtypes.RawExpression) (string, error) {
	sql := expr.SQL
	if c.ProcessExpression != nil {
		processed, err := c.ProcessExpression(expr)
		if err != nil {
			return "", err
		}
		sql = processed
	}
	return expr.Interpolated(sql), nil
}

func (c *Compiler) quoteColumn(column string) (string, error) {
	if c.QuoteColumn != nil {
		return c.QuoteColumn(column)
	}
	if !c.Dialect.IsValidIdentifier(column) {
		return "", &dbtypes.InvalidColumnReferenceError{Column: column, Context: "condition", Reason: "not a valid identifier"}
	}
	return c.Dialect.QuoteIdentifier(column), nil
}

// shapeOf classifies value, dereferencing expression pointers.
func shapeOf(value any) (operators.Shape, any) {
	switch v := value.(type) {
	case dbtypes.RawExpression:
		return operators.Expression, v
	case *dbtypes.RawExpression:
		if v == nil {
			return operators.Null, nil
		}
		return operators.Expression, *v
	}
	if isNil(value) {
		return operators.Null, nil
	}
	if _, ok := dialect.ListValues(value); ok {
		return operators.List, value
	}
	return operators.Scalar, value
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// isFlag reports boolean-ish positional values: true/false, 1/0, "1"/"0"/"".
func isFlag(value any) bool {
	switch v := value.(type) {
	case nil, bool:
		return true
	case string:
		return v == "1" || v == "0" || v == "" || strings.EqualFold(v, "true") || strings.EqualFold(v, "false")
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0 || rv.Int() == 1
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0 || rv.Uint() == 1
	}
	return false
}
