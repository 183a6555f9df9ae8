package conditions

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-sql/database/internal/dialect"
	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name     string
		tree     dbtypes.Conditions
		expected string
	}{
		{
			name: "list and nested OR group",
			tree: dbtypes.Conditions{
				dbtypes.Cond("id", []int{1, 2, 3}),
				dbtypes.Cond("OR", dbtypes.Conditions{
					dbtypes.Cond("name !=", nil),
					dbtypes.Cond("status", "active"),
				}),
			},
			expected: `"id" IN ('1', '2', '3') AND ("name" IS NOT NULL OR "status" = 'active')`,
		},
		{
			name:     "comparison operators",
			tree:     dbtypes.Conditions{dbtypes.Cond("age >=", 18), dbtypes.Cond("age <", 65)},
			expected: `"age" >= '18' AND "age" < '65'`,
		},
		{
			name:     "null equality",
			tree:     dbtypes.Conditions{dbtypes.Cond("deleted_at", nil)},
			expected: `"deleted_at" IS NULL`,
		},
		{
			name:     "not in list",
			tree:     dbtypes.Conditions{dbtypes.Cond("status !=", []string{"a", "b"})},
			expected: `"status" NOT IN ('a', 'b')`,
		},
		{
			name:     "between",
			tree:     dbtypes.Conditions{dbtypes.Cond("price BETWEEN", []any{10, 20})},
			expected: `"price" BETWEEN '10' AND '20'`,
		},
		{
			name:     "scalar IN collapses",
			tree:     dbtypes.Conditions{dbtypes.Cond("id IN", 5)},
			expected: `"id" = '5'`,
		},
		{
			name:     "keyed boolean is equality",
			tree:     dbtypes.Conditions{dbtypes.Cond("is_active", true)},
			expected: `"is_active" = TRUE`,
		},
		{
			name: "flags contribute nothing",
			tree: dbtypes.Conditions{
				dbtypes.Flag(true),
				dbtypes.Cond("id", 1),
				dbtypes.Flag(false),
				dbtypes.Flag("1"),
				dbtypes.Flag(0),
			},
			expected: `"id" = '1'`,
		},
		{
			name:     "empty keys skipped",
			tree:     dbtypes.Conditions{dbtypes.Cond("  ", 1), dbtypes.Cond("id", 2)},
			expected: `"id" = '2'`,
		},
		{
			name: "positional group uses current glue",
			tree: dbtypes.Conditions{
				dbtypes.Cond("OR", dbtypes.Conditions{
					dbtypes.Cond("a", 1),
					dbtypes.Group(dbtypes.Conditions{dbtypes.Cond("b", 2), dbtypes.Cond("c", 3)}),
				}),
			},
			expected: `("a" = '1' OR ("b" = '2' OR "c" = '3'))`,
		},
		{
			name: "raw predicate and raw operand",
			tree: dbtypes.Conditions{
				dbtypes.RawCond(dbtypes.ExprWrapped("a = 1 OR b = 2")),
				dbtypes.Cond("created_at >", dbtypes.Expr("NOW()")),
				dbtypes.Cond("total >", dbtypes.ExprWrapped("SELECT AVG(total) FROM orders")),
			},
			expected: `(a = 1 OR b = 2) AND "created_at" > NOW() AND "total" > (SELECT AVG(total) FROM orders)`,
		},
		{
			name:     "empty nested group dropped",
			tree:     dbtypes.Conditions{dbtypes.Cond("and", dbtypes.Conditions{}), dbtypes.Cond("x", "y")},
			expected: `"x" = 'y'`,
		},
		{
			name:     "regex alias",
			tree:     dbtypes.Conditions{dbtypes.Cond("email regexp", "^a")},
			expected: `"email" ~* '^a'`,
		},
		{
			name:     "jsonb existence any",
			tree:     dbtypes.Conditions{dbtypes.Cond("tags ?|", []string{"a", "b"})},
			expected: `"tags" ?| array['a', 'b']`,
		},
		{
			name:     "empty tree",
			tree:     nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := New(dialect.Postgres{}).Compile(tt.tree, And)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sql)
		})
	}
}

func TestCompileMySQL(t *testing.T) {
	c := New(dialect.MySQL{})
	sql, err := c.Compile(dbtypes.Conditions{
		dbtypes.Cond("name ILIKE", "%bob%"),
		dbtypes.Cond("email ~*", "^a"),
		dbtypes.Cond("active", true),
		dbtypes.Cond("deleted_at", nil),
	}, Or)
	require.NoError(t, err)
	assert.Equal(t, "`name` LIKE '%bob%' OR `email` REGEXP '^a' OR `active` = 1 OR `deleted_at` IS NULL", sql)

	_, err = c.Compile(dbtypes.Conditions{dbtypes.Cond("data @>", `{"a":1}`)}, And)
	assert.ErrorIs(t, err, dbtypes.ErrUnsupportedByDialect)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		tree dbtypes.Conditions
		err  error
	}{
		{"between three values", dbtypes.Conditions{dbtypes.Cond("price BETWEEN", []int{1, 2, 3})}, dbtypes.ErrInvalidConditionValue},
		{"between null bound", dbtypes.Conditions{dbtypes.Cond("price BETWEEN", []any{nil, 5})}, dbtypes.ErrInvalidConditionValue},
		{"between boolean bound", dbtypes.Conditions{dbtypes.Cond("price BETWEEN", []any{true, 5})}, dbtypes.ErrInvalidConditionValue},
		{"between scalar", dbtypes.Conditions{dbtypes.Cond("price BETWEEN", 5)}, dbtypes.ErrUnsupportedOperatorForScalarOperand},
		{"list with gte", dbtypes.Conditions{dbtypes.Cond("age >=", []int{1, 2})}, dbtypes.ErrUnsupportedOperatorForListOperand},
		{"empty list", dbtypes.Conditions{dbtypes.Cond("id", []int{})}, dbtypes.ErrEmptyConditionValue},
		{"nested tree under column", dbtypes.Conditions{dbtypes.Cond("id", dbtypes.Conditions{})}, dbtypes.ErrInvalidConditionValue},
		{"group with scalar", dbtypes.Conditions{dbtypes.Cond("OR", 1)}, dbtypes.ErrInvalidConditionValue},
		{"positional scalar", dbtypes.Conditions{dbtypes.Flag("maybe")}, dbtypes.ErrInvalidConditionValue},
		{"invalid column", dbtypes.Conditions{dbtypes.Cond("first name", 1)}, dbtypes.ErrInvalidColumnReference},
		{"unrecognized operator token", dbtypes.Conditions{dbtypes.Cond("a", 1), dbtypes.Cond("OR", dbtypes.Conditions{dbtypes.Cond("b <=>", 2)})}, dbtypes.ErrInvalidColumnReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(dialect.Postgres{}).Compile(tt.tree, And)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCompileOperatorErrorCarriesColumn(t *testing.T) {
	_, err := New(dialect.Postgres{}).Compile(dbtypes.Conditions{dbtypes.Cond("age >=", []int{1})}, And)
	var opErr *dbtypes.OperatorError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "age", opErr.Column)
	assert.Equal(t, ">=", opErr.Operator)
}

func TestCompileIsIdempotent(t *testing.T) {
	tree := dbtypes.Conditions{
		dbtypes.Cond("id", []int{1, 2, 3}),
		dbtypes.Cond("OR", dbtypes.Conditions{dbtypes.Cond("name !=", nil), dbtypes.Cond("status", "active")}),
		dbtypes.Cond("price BETWEEN", []float64{1.5, 2.5}),
	}
	c := New(dialect.Postgres{})
	first, err := c.Compile(tree, And)
	require.NoError(t, err)
	second, err := c.Compile(tree, And)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileDelegates(t *testing.T) {
	c := &Compiler{
		Dialect: dialect.Postgres{},
		QuoteColumn: func(column string) (string, error) {
			return `"t".` + `"` + strings.TrimPrefix(column, "Owner.") + `"`, nil
		},
		ProcessExpression: func(expr dbtypes.RawExpression) (string, error) {
			return strings.ReplaceAll(expr.SQL, "`", `"`), nil
		},
	}
	sql, err := c.Compile(dbtypes.Conditions{
		dbtypes.Cond("Owner.id", dbtypes.Expr("`p`.`owner_id`")),
	}, And)
	require.NoError(t, err)
	assert.Equal(t, `"t"."id" = "p"."owner_id"`, sql)

	c.ProcessExpression = func(dbtypes.RawExpression) (string, error) { return "", dbtypes.ErrMissingJoin }
	_, err = c.Compile(dbtypes.Conditions{dbtypes.RawCond(dbtypes.Expr("x"))}, And)
	assert.ErrorIs(t, err, dbtypes.ErrMissingJoin)
}
