package database

import (
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	wrap := func(err error) error {
		return &QueryError{SQL: "INSERT INTO users", Err: fmt.Errorf("exec: %w", err)}
	}

	tests := []struct {
		name       string
		err        error
		unique     bool
		foreignKey bool
		notNull    bool
		retryable  bool
	}{
		{name: "postgres unique", err: &pgconn.PgError{Code: "23505"}, unique: true},
		{name: "postgres foreign key", err: &pgconn.PgError{Code: "23503"}, foreignKey: true},
		{name: "postgres not null", err: &pgconn.PgError{Code: "23502"}, notNull: true},
		{name: "postgres serialization", err: &pgconn.PgError{Code: "40001"}, retryable: true},
		{name: "postgres deadlock", err: &pgconn.PgError{Code: "40P01"}, retryable: true},
		{name: "postgres syntax", err: &pgconn.PgError{Code: "42601"}},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, unique: true},
		{name: "mysql child row", err: &mysql.MySQLError{Number: 1452}, foreignKey: true},
		{name: "mysql parent row", err: &mysql.MySQLError{Number: 1451}, foreignKey: true},
		{name: "mysql bad null", err: &mysql.MySQLError{Number: 1048}, notNull: true},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}, retryable: true},
		{name: "mysql lock wait", err: &mysql.MySQLError{Number: 1205}, retryable: true},
		{name: "plain error", err: errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrap(tt.err)
			assert.Equal(t, tt.unique, IsUniqueViolation(err))
			assert.Equal(t, tt.foreignKey, IsForeignKeyViolation(err))
			assert.Equal(t, tt.notNull, IsNotNullViolation(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}

	assert.False(t, IsUniqueViolation(nil))
}
