package dialect

import (
	"errors"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

type stringer struct{ s string }

func (s stringer) String() string { return s.s }

func TestFor(t *testing.T) {
	pg, err := For(dbtypes.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, dbtypes.PostgreSQL, pg.Name())

	my, err := For(dbtypes.MySQL)
	require.NoError(t, err)
	assert.Equal(t, dbtypes.MySQL, my.Name())

	_, err = For("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database vendor")

	assert.Panics(t, func() { MustFor("sqlite") })
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		input    string
		expected string
	}{
		{"pg simple", Postgres{}, "users", `"users"`},
		{"pg schema", Postgres{}, "public.users", `"public"."users"`},
		{"pg embedded quote", Postgres{}, `we"ird`, `"we""ird"`},
		{"mysql simple", MySQL{}, "users", "`users`"},
		{"mysql embedded backtick", MySQL{}, "we`ird", "`we``ird`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteTable(t *testing.T) {
	q, err := Postgres{}.QuoteTable("billing", "invoices")
	require.NoError(t, err)
	assert.Equal(t, `"billing"."invoices"`, q)

	q, err = MySQL{}.QuoteTable("", "invoices")
	require.NoError(t, err)
	assert.Equal(t, "`invoices`", q)

	_, err = MySQL{}.QuoteTable("billing", "invoices")
	assert.ErrorIs(t, err, dbtypes.ErrUnsupportedByDialect)
}

func TestQuoteValue(t *testing.T) {
	var nilPtr *int
	n := 7
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		pg    string
		mysql string
	}{
		{"nil", nil, "NULL", "NULL"},
		{"true", true, "TRUE", "1"},
		{"false", false, "FALSE", "0"},
		{"string", "active", "'active'", "'active'"},
		{"quote", "O'Brien", "'O''Brien'", `'O\'Brien'`},
		{"backslash", `a\b`, `'a\b'`, `'a\\b'`},
		{"int", 42, "'42'", "'42'"},
		{"negative int64", int64(-3), "'-3'", "'-3'"},
		{"uint8", uint8(9), "'9'", "'9'"},
		{"float", 1.5, "'1.5'", "'1.5'"},
		{"pointer", &n, "'7'", "'7'"},
		{"nil pointer", nilPtr, "NULL", "NULL"},
		{"bytes", []byte{0xde, 0xad}, `'\xdead'::bytea`, "X'dead'"},
		{"time", ts, "'2024-03-01 10:30:00+00:00'", "'2024-03-01 10:30:00'"},
		{"stringer", stringer{"x"}, "'x'", "'x'"},
		{"map", map[string]any{"a": 1}, `'{"a":1}'`, `'{\"a\":1}'`},
		{"expression", dbtypes.ExprWrapped("SELECT 1"), "(SELECT 1)", "(SELECT 1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Postgres{}.QuoteValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.pg, got)

			got, err = MySQL{}.QuoteValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.mysql, got)
		})
	}
}

func TestQuoteValueRejectsNULByteOnPostgres(t *testing.T) {
	_, err := Postgres{}.QuoteValue("a\x00b")
	require.Error(t, err)

	got, err := MySQL{}.QuoteValue("a\x00b")
	require.NoError(t, err)
	assert.Equal(t, `'a\0b'`, got)
}

func TestQuoteValueUnsupportedType(t *testing.T) {
	_, err := Postgres{}.QuoteValue(make(chan int))
	require.Error(t, err)
}

func TestCast(t *testing.T) {
	assert.Equal(t, `"age"::int`, Postgres{}.Cast(`"age"`, "int"))
	assert.Equal(t, "CAST(`age` AS SIGNED)", MySQL{}.Cast("`age`", "int"))
	assert.Equal(t, "CAST(`d` AS DATE)", MySQL{}.Cast("`d`", "date"))
}

func TestJSONSelector(t *testing.T) {
	tests := []struct {
		name  string
		path  []JSONStep
		pg    string
		mysql string
	}{
		{
			name:  "single arrow",
			path:  []JSONStep{{"->", "profile"}},
			pg:    `"data"->'profile'`,
			mysql: "`data`->'$.profile'",
		},
		{
			name:  "single text arrow",
			path:  []JSONStep{{"->>", "name"}},
			pg:    `"data"->>'name'`,
			mysql: "`data`->>'$.name'",
		},
		{
			name:  "chain with index",
			path:  []JSONStep{{"->", "tags"}, {"->>", "0"}},
			pg:    `"data"->'tags'->>0`,
			mysql: "JSON_UNQUOTE(JSON_EXTRACT(`data`, '$.tags[0]'))",
		},
		{
			name:  "path operator",
			path:  []JSONStep{{"#>", "{a,b}"}},
			pg:    `"data"#>'{a,b}'`,
			mysql: "JSON_EXTRACT(`data`, '$.a.b')",
		},
		{
			name:  "text path operator",
			path:  []JSONStep{{"#>>", "{a,1}"}},
			pg:    `"data"#>>'{a,1}'`,
			mysql: "JSON_UNQUOTE(JSON_EXTRACT(`data`, '$.a[1]'))",
		},
		{
			name:  "key needing quotes",
			path:  []JSONStep{{"->", "first name"}},
			pg:    `"data"->'first name'`,
			mysql: "`data`->'$.\\\"first name\\\"'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Postgres{}.JSONSelector(`"data"`, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.pg, got)

			got, err = MySQL{}.JSONSelector("`data`", tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.mysql, got)
		})
	}

	_, err := Postgres{}.JSONSelector(`"data"`, nil)
	assert.Error(t, err)
	_, err = MySQL{}.JSONSelector("`data`", []JSONStep{{"=>", "a"}})
	assert.Error(t, err)
}

func TestRewriteOperator(t *testing.T) {
	tests := []struct {
		op       string
		expected string
	}{
		{"~*", "REGEXP"},
		{"!~*", "NOT REGEXP"},
		{"~", "REGEXP BINARY"},
		{"ILIKE", "LIKE"},
		{"NOT ILIKE", "NOT LIKE"},
		{">=", ">="},
		{"IN", "IN"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, err := MySQL{}.RewriteOperator(tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			got, err = Postgres{}.RewriteOperator(tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.op, got)
		})
	}

	for _, op := range []string{"@>", "<@", "?", "?|", "?&", "&&", "SIMILAR TO"} {
		_, err := MySQL{}.RewriteOperator(op)
		assert.True(t, errors.Is(err, dbtypes.ErrUnsupportedByDialect), op)
	}
}

func TestIsListOperator(t *testing.T) {
	for _, op := range []string{"@>", "<@", "?|", "?&", "&&"} {
		assert.True(t, Postgres{}.IsListOperator(op), op)
		assert.False(t, MySQL{}.IsListOperator(op), op)
	}
	assert.False(t, Postgres{}.IsListOperator("IN"))
}

func TestPostgresAssembleCondition(t *testing.T) {
	pg := Postgres{}

	sql, handled, err := pg.AssembleCondition(`"tags"`, "?|", []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, `"tags" ?| array['a', 'b']`, sql)

	sql, handled, err = pg.AssembleCondition(`"data"`, "@>", map[string]any{"role": "admin"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, `"data" @> '{"role":"admin"}'::jsonb`, sql)

	sql, handled, err = pg.AssembleCondition(`"data"`, "<@", `{"a":1}`)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, `"data" <@ '{"a":1}'::jsonb`, sql)

	sql, handled, err = pg.AssembleCondition(`"ids"`, "&&", []int{1, 2})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, `"ids" && ARRAY['1', '2']`, sql)

	_, handled, err = pg.AssembleCondition(`"tags"`, "?&", []string{})
	assert.True(t, handled)
	assert.ErrorIs(t, err, dbtypes.ErrEmptyConditionValue)

	_, handled, err = pg.AssembleCondition(`"age"`, ">=", 3)
	require.NoError(t, err)
	assert.False(t, handled)

	_, handled, err = pg.AssembleCondition(`"data"`, "@>", dbtypes.Expr("'{}'::jsonb"))
	require.NoError(t, err)
	assert.False(t, handled)

	_, handled, _ = MySQL{}.AssembleCondition("`tags`", "?|", []string{"a"})
	assert.False(t, handled)
}

func TestCapabilities(t *testing.T) {
	assert.True(t, Postgres{}.SupportsReturning())
	assert.False(t, MySQL{}.SupportsReturning())
	assert.True(t, Postgres{}.SupportsDistinctOn())
	assert.False(t, MySQL{}.SupportsDistinctOn())
	assert.Equal(t, 63, Postgres{}.MaxIdentifierLength())
	assert.Equal(t, 64, MySQL{}.MaxIdentifierLength())
	assert.Equal(t, squirrel.Dollar, Postgres{}.PlaceholderFormat())
	assert.Equal(t, squirrel.Question, MySQL{}.PlaceholderFormat())
	assert.Equal(t, `"d" ?? 'k'`, Postgres{}.EscapePlaceholders(`"d" ? 'k'`))
	assert.Equal(t, "a ? b", MySQL{}.EscapePlaceholders("a ? b"))
}

func TestIsValidIdentifier(t *testing.T) {
	for _, d := range []Dialect{Postgres{}, MySQL{}} {
		assert.True(t, d.IsValidIdentifier("user_id"))
		assert.True(t, d.IsValidIdentifier("_x1"))
		assert.False(t, d.IsValidIdentifier("1abc"))
		assert.False(t, d.IsValidIdentifier("a-b"))
		assert.False(t, d.IsValidIdentifier(""))
		assert.False(t, d.IsValidIdentifier("a b"))
	}
}

func TestListValues(t *testing.T) {
	items, ok := ListValues([]int{1, 2})
	assert.True(t, ok)
	assert.Equal(t, []any{1, 2}, items)

	_, ok = ListValues("abc")
	assert.False(t, ok)
	_, ok = ListValues([]byte("abc"))
	assert.False(t, ok)
	_, ok = ListValues(nil)
	assert.False(t, ok)

	s, err := QuoteList(MySQL{}, []any{1, "a"})
	require.NoError(t, err)
	assert.Equal(t, "'1', 'a'", s)
}
