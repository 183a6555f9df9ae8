package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-sql/database/schema"
	"github.com/gaborage/go-bricks-sql/database/types"
)

func TestNewQueryBuilder(t *testing.T) {
	qb, err := NewQueryBuilder(PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, PostgreSQL, qb.Vendor())
	assert.True(t, qb.SupportsReturning())

	qb, err = NewQueryBuilder(MySQL)
	require.NoError(t, err)
	assert.Equal(t, MySQL, qb.Vendor())
	assert.False(t, qb.SupportsReturning())

	_, err = NewQueryBuilder("oracle")
	assert.Error(t, err)
}

func TestQueryBuilderQuoting(t *testing.T) {
	tests := []struct {
		vendor     string
		identifier string
		literal    string
	}{
		{vendor: PostgreSQL, identifier: `"app"."users"`, literal: `'O''Brien'`},
		{vendor: MySQL, identifier: "`app`.`users`", literal: `'O\'Brien'`},
	}

	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			qb, err := NewQueryBuilder(tt.vendor)
			require.NoError(t, err)
			assert.Equal(t, tt.identifier, qb.QuoteIdentifier("app.users"))

			literal, err := qb.QuoteLiteral("O'Brien")
			require.NoError(t, err)
			assert.Equal(t, tt.literal, literal)
		})
	}
}

func TestQueryBuilderSelect(t *testing.T) {
	qb, err := NewQueryBuilder(MySQL)
	require.NoError(t, err)

	sql, err := qb.Select(tableUsers, colID, colName).
		Where(types.Cond("status", "active")).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `users`.`id`, `users`.`name` FROM `users` WHERE `users`.`status` = 'active'", sql)
}

func TestQueryBuilderSelectFrom(t *testing.T) {
	companies := schema.NewTable("companies", schema.Col(colID), schema.Col(colName))
	users := schema.NewTable(tableUsers, schema.Col(colID), schema.Col(colName), schema.Col("company_id")).
		BelongsTo("Company", companies, "company_id")

	qb, err := NewQueryBuilder(PostgreSQL)
	require.NoError(t, err)

	sql, err := qb.SelectFrom(users, colID).JoinRelation("Company", colName).ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "users"."id", "Company"."name" AS "_Company__name" FROM "users" `+
			`LEFT JOIN "companies" AS "Company" ON "Company"."id" = "users"."company_id"`,
		sql)
}

func TestQueryBuilderDML(t *testing.T) {
	qb, err := NewQueryBuilder(PostgreSQL)
	require.NoError(t, err)

	sql, args, err := qb.Insert(tableUsers, []map[string]any{{colName: "ann"}}, colID)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`, sql)
	assert.Equal(t, []any{"ann"}, args)

	sql, args, err = qb.Update(tableUsers, map[string]any{colName: "bob"}, types.Conditions{types.Cond(colID, 1)})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = $1 WHERE "id" = '1'`, sql)
	assert.Equal(t, []any{"bob"}, args)

	sql, _, err = qb.Delete(tableUsers, types.Conditions{types.Cond(colID, 1)})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = '1'`, sql)
}
