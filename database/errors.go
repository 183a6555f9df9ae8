package database

import (
	"errors"
	"slices"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gaborage/go-bricks-sql/database/types"
)

// Re-exported error values so callers can match them without importing types.
var (
	ErrTransactionState  = types.ErrTransactionState
	ErrReturningMismatch = types.ErrReturningMismatch
)

// QueryError wraps a driver failure with the SQL that caused it.
type QueryError = types.QueryError

// ReturningMismatchError reports a follow-up SELECT that fetched a different number of rows
// than the write affected.
type ReturningMismatchError = types.ReturningMismatchError

// PostgreSQL SQLSTATE codes and MySQL error numbers for constraint and concurrency failures.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"

	mysqlDuplicateEntry      = 1062
	mysqlNoReferencedRow     = 1452
	mysqlRowIsReferenced     = 1451
	mysqlBadNull             = 1048
	mysqlLockDeadlock        = 1213
	mysqlLockWaitTimeout     = 1205
	mysqlNoReferencedRowOld  = 1216
	mysqlRowIsReferencedOld  = 1217
	mysqlFieldDoesntHaveDflt = 1364
)

// IsUniqueViolation reports whether err was caused by a unique or primary key constraint.
func IsUniqueViolation(err error) bool {
	return matchCode(err, []string{pgUniqueViolation}, []uint16{mysqlDuplicateEntry})
}

// IsForeignKeyViolation reports whether err was caused by a foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	return matchCode(err, []string{pgForeignKeyViolation},
		[]uint16{mysqlNoReferencedRow, mysqlRowIsReferenced, mysqlNoReferencedRowOld, mysqlRowIsReferencedOld})
}

// IsNotNullViolation reports whether err was caused by a missing value for a NOT NULL column.
func IsNotNullViolation(err error) bool {
	return matchCode(err, []string{pgNotNullViolation}, []uint16{mysqlBadNull, mysqlFieldDoesntHaveDflt})
}

// IsRetryable reports whether err is a deadlock, serialization or lock timeout failure
// after which the whole transaction can be retried.
func IsRetryable(err error) bool {
	return matchCode(err, []string{pgSerializationFail, pgDeadlockDetected},
		[]uint16{mysqlLockDeadlock, mysqlLockWaitTimeout})
}

func matchCode(err error, pgCodes []string, mysqlNumbers []uint16) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return slices.Contains(pgCodes, pgErr.Code)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return slices.Contains(mysqlNumbers, myErr.Number)
	}
	return false
}
