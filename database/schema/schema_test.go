package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

type Timestamps struct {
	CreatedAt string `db:"created_at"`
}

type SchemaUser struct {
	ID    int64  `db:"id,pk"`
	Name  string `db:"name"`
	Bio   string `db:"bio,heavy"`
	Email string `db:"email"`
	Timestamps
	secret  string //nolint:unused // unexported fields are ignored
	Ignored string `db:"-"`
}

type SchemaPost struct {
	PostID  int64  `db:"post_id,pk"`
	OwnerID int64  `db:"owner_id"`
	Title   string `db:"title"`
}

func TestParseStruct(t *testing.T) {
	registry := &Registry{}
	users, err := registry.Get(&SchemaUser{}, "users")
	require.NoError(t, err)

	assert.Equal(t, "SchemaUser", users.TypeName)
	assert.Equal(t, "users", users.TableName())
	assert.Empty(t, users.SchemaName())
	assert.Equal(t, "id", users.PrimaryKey())
	assert.Equal(t, []string{"id", "name", "email", "created_at"}, users.ColumnNames(false))
	assert.Equal(t, []string{"id", "name", "bio", "email", "created_at"}, users.ColumnNames(true))
	assert.True(t, users.HasColumn("bio"))
	assert.False(t, users.HasColumn("secret"))
	assert.Equal(t, "email", users.Field("Email"))
	assert.Equal(t, []any{"id", "created_at"}, users.Fields("ID", "CreatedAt"))
	assert.Panics(t, func() { users.Field("Missing") })

	cols := users.Columns()
	require.Len(t, cols, 5)
	assert.True(t, cols[2].IsHeavy())
	assert.False(t, cols[1].IsHeavy())
}

func TestParseStructErrors(t *testing.T) {
	type noTags struct{ Name string }
	type dangerous struct {
		Name string `db:"name; DROP TABLE users"`
	}
	type quoted struct {
		Name string `db:"\"name\""`
	}
	type unknownOption struct {
		Name string `db:"name,indexed"`
	}
	type twoKeys struct {
		A int `db:"a,pk"`
		B int `db:"b,pk"`
	}
	type duplicate struct {
		A string `db:"name"`
		B string `db:"name"`
	}

	tests := []struct {
		name      string
		structPtr any
		table     string
		contains  string
	}{
		{"not a pointer", SchemaUser{}, "users", "pointer to struct"},
		{"no tags", &noTags{}, "t", "no fields"},
		{"dangerous tag", &dangerous{}, "t", "dangerous"},
		{"quoted tag", &quoted{}, "t", "quotes"},
		{"unknown option", &unknownOption{}, "t", "unknown option"},
		{"two primary keys", &twoKeys{}, "t", "more than one primary key"},
		{"duplicate column", &duplicate{}, "t", "duplicate column"},
		{"invalid table", &SchemaPost{}, "bad-name", "invalid table name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := &Registry{}
			_, err := registry.Get(tt.structPtr, tt.table)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestRegistryCachesTables(t *testing.T) {
	registry := &Registry{}

	first, err := registry.Get(&SchemaUser{}, "users")
	require.NoError(t, err)
	second, err := registry.Get(&SchemaUser{}, "users")
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := registry.Get(&SchemaUser{}, "app.users")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, "app", other.SchemaName())
	assert.Equal(t, "app.users", other.QualifiedName())

	cached, ok := registry.Lookup(&SchemaUser{}, "users")
	require.True(t, ok)
	assert.Same(t, first, cached)

	registry.Clear()
	_, ok = registry.Lookup(&SchemaUser{}, "users")
	assert.False(t, ok)
}

func TestRegistryConcurrentFirstUse(t *testing.T) {
	registry := &Registry{}
	const goroutines = 32

	results := make([]*Table, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl, err := registry.Get(&SchemaPost{}, "posts")
			assert.NoError(t, err)
			results[i] = tbl
		}(i)
	}
	wg.Wait()

	for _, tbl := range results {
		assert.Same(t, results[0], tbl)
	}
}

func TestGlobalRegister(t *testing.T) {
	ClearGlobalRegistry()
	defer ClearGlobalRegistry()

	users := Register(&SchemaUser{}, "users")
	found, ok := Lookup(&SchemaUser{}, "users")
	require.True(t, ok)
	assert.Same(t, users, found)

	assert.Panics(t, func() { Register(&struct{ X int }{}, "x") })
}

func TestRelations(t *testing.T) {
	users := NewTable("users", Col("id"), Col("name"), Col("company_id"))
	companies := NewTable("companies", Col("code").PK(), Col("name"))
	posts := NewTable("posts", Col("id"), Col("owner_id"), Col("title"), Col("body").Heavy())
	profiles := NewTable("profiles", Col("id"), Col("user_id"), Col("avatar"))

	users.
		BelongsTo("Company", companies, "company_id").
		HasOne("Profile", profiles, "user_id", WithConditions(dbtypes.Cond("avatar !=", nil))).
		HasMany("Posts", posts, "owner_id")
	posts.BelongsTo("Owner", users, "owner_id", WithJoinType(dbtypes.InnerJoin))

	rel, ok := users.Relation("Company")
	require.True(t, ok)
	assert.Equal(t, dbtypes.BelongsTo, rel.Type())
	assert.Equal(t, "company_id", rel.LocalColumn())
	assert.Equal(t, "code", rel.ForeignColumn())
	assert.Equal(t, dbtypes.LeftJoin, rel.JoinType())
	assert.Same(t, companies, rel.ForeignTable())

	rel, ok = users.Relation("Profile")
	require.True(t, ok)
	assert.Equal(t, dbtypes.HasOne, rel.Type())
	assert.Equal(t, "id", rel.LocalColumn())
	assert.Equal(t, "user_id", rel.ForeignColumn())
	assert.Len(t, rel.Conditions(), 1)

	rel, ok = users.Relation("Posts")
	require.True(t, ok)
	assert.Equal(t, dbtypes.HasMany, rel.Type())

	rel, ok = posts.Relation("Owner")
	require.True(t, ok)
	assert.Equal(t, dbtypes.InnerJoin, rel.JoinType())

	_, ok = posts.Relation("Missing")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"Company", "Profile", "Posts"}, users.Relations())
}

func TestRelationDeclarationPanics(t *testing.T) {
	users := NewTable("users", Col("id"), Col("company_id"))
	companies := NewTable("companies", Col("id"))
	keyless := NewTable("tags", Col("label"))

	tests := []struct {
		name    string
		declare func()
	}{
		{"unknown local column", func() { users.BelongsTo("Company", companies, "missing") }},
		{"foreign table without primary key", func() { users.BelongsTo("Tag", keyless, "company_id") }},
		{"nil foreign table", func() { users.BelongsTo("Nothing", nil, "company_id") }},
		{"invalid name", func() { users.BelongsTo("Co mpany", companies, "company_id") }},
		{"cross join", func() {
			users.BelongsTo("Cross", companies, "company_id", WithJoinType(dbtypes.CrossJoin))
		}},
		{"duplicate", func() {
			users.BelongsTo("Dup", companies, "company_id")
			users.BelongsTo("Dup", companies, "company_id")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.declare)
		})
	}
}

func TestNewTable(t *testing.T) {
	tbl := NewTable("public.events", Col("event_id").PK(), Col("payload").Heavy())
	assert.Equal(t, "public", tbl.SchemaName())
	assert.Equal(t, "events", tbl.TableName())
	assert.Equal(t, "event_id", tbl.PrimaryKey())
	assert.Equal(t, []string{"event_id"}, tbl.ColumnNames(false))

	noID := NewTable("tags", Col("label"))
	assert.Empty(t, noID.PrimaryKey())

	assert.Panics(t, func() { NewTable("t") })
	assert.Panics(t, func() { NewTable("t", Col("a"), Col("a")) })
	assert.Panics(t, func() { NewTable("t", Col("bad name")) })
}

func TestValues(t *testing.T) {
	registry := &Registry{}
	users, err := registry.Get(&SchemaUser{}, "users")
	require.NoError(t, err)

	values, err := users.Values(&SchemaUser{Name: "ann", Email: "ann@example.com", Timestamps: Timestamps{CreatedAt: "now"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":       "ann",
		"bio":        "",
		"email":      "ann@example.com",
		"created_at": "now",
	}, values)

	values, err = users.Values(SchemaUser{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(9), values["id"])

	_, err = users.Values(&SchemaPost{})
	assert.Error(t, err)

	var nilUser *SchemaUser
	_, err = users.Values(nilUser)
	assert.Error(t, err)
}
