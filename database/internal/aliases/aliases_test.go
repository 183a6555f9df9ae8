package aliases

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShorten(t *testing.T) {
	tests := []struct {
		name     string
		long     string
		limit    int
		expected string
	}{
		{"fits", "Owner", 10, "Owner"},
		{"exact fit", "Owner", 5, "Owner"},
		{"vowels removed left to right", "Organization", 10, "Orgnzation"},
		{"all vowels removed", "Organization", 7, "Orgnztn"},
		{"truncated after vowel removal", "Organization", 4, "Orgn"},
		{"first character kept", "aaaaab", 2, "ab"},
		{"zero limit", "abc", 0, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shorten(tt.long, tt.limit)
			assert.Equal(t, tt.expected, got)
			assert.LessOrEqual(t, len(got), max(tt.limit, 1))
		})
	}
}

func TestSpaceFastPathAndRoundTrip(t *testing.T) {
	s := NewSpace(10)
	assert.Equal(t, "Owner", s.Short("Owner"))
	assert.Equal(t, "Owner", s.Short("Owner"))

	short := s.Short("Organization")
	assert.Equal(t, "Orgnzation", short)
	// A short alias handed back is recognized and not shortened again.
	assert.Equal(t, short, s.Short(short))
	assert.Equal(t, 2, s.Len())

	long, ok := s.Long(short)
	require.True(t, ok)
	assert.Equal(t, "Organization", long)

	_, ok = s.Long("missing")
	assert.False(t, ok)
}

func TestSpaceCollisionSuffix(t *testing.T) {
	s := NewSpace(6)
	a := s.Short("customer_address")
	b := s.Short("customer_account")
	c := s.Short("customer_agent")

	assert.Equal(t, "cstmr_", a)
	assert.Equal(t, "cstmr2", b)
	assert.Equal(t, "cstmr3", c)
}

func TestSpaceDeclareTreatsIssuedShortAsCollision(t *testing.T) {
	s := NewSpace(30)
	first := s.Declare("OrganizationMembershipsAndRoles")
	assert.Equal(t, "OrgnizationMembershipsAndRoles", first)

	// A different name that happens to equal the first short alias gets its own alias.
	second := s.Declare("OrgnizationMembershipsAndRoles")
	assert.Equal(t, "OrgnizationMembershipsAndRole2", second)
	assert.NotEqual(t, first, second)

	// Declaring a name again reuses its alias.
	assert.Equal(t, first, s.Declare("OrganizationMembershipsAndRoles"))
	assert.Equal(t, second, s.Declare("OrgnizationMembershipsAndRoles"))

	long, ok := s.Long(second)
	require.True(t, ok)
	assert.Equal(t, "OrgnizationMembershipsAndRoles", long)
}

func TestAllocatorTableKeepsNamesWithinLimit(t *testing.T) {
	a := New(63)
	name := strings.Repeat("membership", 4)
	require.Len(t, name, 40)
	ts := a.Table(name)
	assert.Equal(t, name, ts)

	// Only the table part of the column compound is shortened.
	cs := a.Column(ts, "role")
	assert.LessOrEqual(t, len(cs), 63)
	assert.True(t, strings.HasPrefix(cs, "_"), cs)
	assert.True(t, strings.HasSuffix(cs, "__role"), cs)
	assert.Less(t, len(cs), len("_"+name+"__role"))

	table, column, ok := a.Resolve(cs)
	require.True(t, ok)
	assert.Equal(t, name, table)
	assert.Equal(t, "role", column)
}

func TestAllocatorDistinctJoinNamesWithEqualShortForm(t *testing.T) {
	a := New(30)
	first := a.Table("OrganizationMembershipsAndRoles")
	second := a.Table("OrgnizationMembershipsAndRoles")
	require.NotEqual(t, first, second)

	c1 := a.Column(first, "id")
	c2 := a.Column(second, "id")
	require.NotEqual(t, c1, c2)

	table, _, ok := a.Resolve(c1)
	require.True(t, ok)
	assert.Equal(t, "OrganizationMembershipsAndRoles", table)
	table, _, ok = a.Resolve(c2)
	require.True(t, ok)
	assert.Equal(t, "OrgnizationMembershipsAndRoles", table)
}

func TestAllocatorInjectiveAndBounded(t *testing.T) {
	for _, maxLen := range []int{63, 64} {
		t.Run(fmt.Sprint(maxLen), func(t *testing.T) {
			a := New(maxLen)
			seenTables := map[string]string{}
			seenColumns := map[string]string{}

			for i := 0; i < 200; i++ {
				table := fmt.Sprintf("relation_with_a_very_long_descriptive_name_number_%d", i%40)
				if i%3 == 0 {
					table = fmt.Sprintf("%s_%d", strings.Repeat("x", 40), i%45)
				}
				ts := a.Table(table)
				assert.LessOrEqual(t, len(ts), maxLen)
				if prev, ok := seenTables[ts]; ok {
					assert.Equal(t, prev, table, "table alias %q reused", ts)
				}
				seenTables[ts] = table

				column := fmt.Sprintf("attribute_with_an_extremely_long_and_verbose_name_%d", i)
				cs := a.Column(ts, column)
				assert.LessOrEqual(t, len(cs), maxLen)
				key := ts + "/" + column
				if prev, ok := seenColumns[cs]; ok {
					assert.Equal(t, prev, key, "column alias %q reused", cs)
				}
				seenColumns[cs] = key

				gotTable, gotColumn, ok := a.Resolve(cs)
				require.True(t, ok)
				assert.Equal(t, table, gotTable)
				assert.Equal(t, column, gotColumn)
			}
		})
	}
}

func TestAllocatorIndependentSpaces(t *testing.T) {
	a := New(63)
	assert.Equal(t, "Owner", a.Table("Owner"))
	assert.Equal(t, "Owner", a.Alias("Owner"))

	long, ok := a.TableLong("Owner")
	require.True(t, ok)
	assert.Equal(t, "Owner", long)

	long, ok = a.AliasLong("Owner")
	require.True(t, ok)
	assert.Equal(t, "Owner", long)
	assert.Equal(t, 63, a.MaxLength())
}

func TestAllocatorResolve(t *testing.T) {
	a := New(63)
	ts := a.Table("Owner")
	cs := a.Column(ts, "email")
	assert.Equal(t, "_Owner__email", cs)

	table, column, ok := a.Resolve(cs)
	require.True(t, ok)
	assert.Equal(t, "Owner", table)
	assert.Equal(t, "email", column)

	// Pattern fallback for compounds this allocator did not issue.
	table, column, ok = a.Resolve("_Owner__name")
	require.True(t, ok)
	assert.Equal(t, "Owner", table)
	assert.Equal(t, "name", column)

	for _, alias := range []string{"email", "_Unknown__x", "_Owner__", "__x", "_"} {
		_, _, ok = a.Resolve(alias)
		assert.False(t, ok, alias)
	}
}
