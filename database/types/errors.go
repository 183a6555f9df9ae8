//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for query construction and execution failures.
// These can be used with errors.Is() for programmatic error checking; the typed
// errors below wrap them and carry the offending input.
var (
	// ErrEmptyExpressionSQL is returned when Expr() is called with empty SQL.
	ErrEmptyExpressionSQL = errors.New("expression SQL cannot be empty")

	// ErrTooManyAliases is returned when Expr() is called with more than 1 alias.
	ErrTooManyAliases = errors.New("expression accepts maximum 1 alias")

	// ErrDangerousAlias is returned when an alias contains SQL injection patterns.
	ErrDangerousAlias = errors.New("alias contains dangerous characters")

	// ErrInvalidColumnReference is returned for malformed column, alias or join text.
	ErrInvalidColumnReference = errors.New("invalid column reference")

	// ErrUnsupportedOperatorForListOperand is returned when a list is passed to an operator
	// that only accepts a single value (e.g. ">=").
	ErrUnsupportedOperatorForListOperand = errors.New("operator does not accept a list operand")

	// ErrUnsupportedOperatorForScalarOperand is returned when a single value is passed to an
	// operator that requires a list (e.g. BETWEEN).
	ErrUnsupportedOperatorForScalarOperand = errors.New("operator does not accept a scalar operand")

	// ErrUnknownOperator is returned for comparison tokens that are not recognized.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrMissingJoin is returned when a query references a join that was never declared.
	ErrMissingJoin = errors.New("join is referenced but not declared")

	// ErrDuplicateJoinName is returned when a join name collides with another join or the base table alias.
	ErrDuplicateJoinName = errors.New("duplicate join name")

	// ErrUnsupportedRelationTypeForJoin is returned when a one-to-many relation is used as a join.
	ErrUnsupportedRelationTypeForJoin = errors.New("relation type cannot be used as a join")

	// ErrReturningMismatch is returned when the rows fetched back after a write do not match
	// the affected row count.
	ErrReturningMismatch = errors.New("returned rows do not match affected rows")

	// ErrEmptyConditionValue is returned when an empty list is passed as an IN-style operand.
	ErrEmptyConditionValue = errors.New("condition value cannot be empty")

	// ErrInvalidConditionValue is returned when a condition value has the wrong shape for its
	// operator (BETWEEN arity, null or boolean bounds, nested conditions under a column key).
	ErrInvalidConditionValue = errors.New("invalid condition value")

	// ErrTransactionState is returned for begin-while-in-transaction and
	// commit/rollback-without-begin.
	ErrTransactionState = errors.New("invalid transaction state")

	// ErrUnsupportedByDialect is returned when a feature has no rendering in the target dialect.
	ErrUnsupportedByDialect = errors.New("not supported by dialect")
)

// InvalidColumnReferenceError describes a column mention that could not be parsed or validated.
type InvalidColumnReferenceError struct {
	Column  string
	Context string
	Reason  string
}

func (e *InvalidColumnReferenceError) Error() string {
	msg := fmt.Sprintf("invalid column reference %q", e.Column)
	if e.Context != "" {
		msg += " in " + e.Context
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidColumnReferenceError) Unwrap() error { return ErrInvalidColumnReference }

// OperatorError describes an operator/operand shape mismatch.
type OperatorError struct {
	Operator string
	Shape    string
	Column   string
	err      error
}

// NewOperatorError creates an OperatorError wrapping one of the operator sentinels.
func NewOperatorError(sentinel error, operator, shape string) *OperatorError {
	return &OperatorError{Operator: operator, Shape: shape, err: sentinel}
}

func (e *OperatorError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%v: %q with %s operand for column %q", e.err, e.Operator, e.Shape, e.Column)
	}
	return fmt.Sprintf("%v: %q with %s operand", e.err, e.Operator, e.Shape)
}

func (e *OperatorError) Unwrap() error { return e.err }

// ConditionValueError describes a rejected condition value.
type ConditionValueError struct {
	Column   string
	Operator string
	Reason   string
	err      error
}

// NewConditionValueError creates a ConditionValueError wrapping ErrEmptyConditionValue or
// ErrInvalidConditionValue.
func NewConditionValueError(sentinel error, column, operator, reason string) *ConditionValueError {
	return &ConditionValueError{Column: column, Operator: operator, Reason: reason, err: sentinel}
}

func (e *ConditionValueError) Error() string {
	return fmt.Sprintf("%v for %q %s: %s", e.err, e.Column, e.Operator, e.Reason)
}

func (e *ConditionValueError) Unwrap() error { return e.err }

// MissingJoinError reports a join name used in a query without being declared.
type MissingJoinError struct {
	Join    string
	Context string
}

func (e *MissingJoinError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("join %q is referenced in %s but not declared", e.Join, e.Context)
	}
	return fmt.Sprintf("join %q is referenced but not declared", e.Join)
}

func (e *MissingJoinError) Unwrap() error { return ErrMissingJoin }

// ReturningMismatchError reports that a follow-up SELECT did not return the expected row count.
type ReturningMismatchError struct {
	Table    string
	Expected int64
	Actual   int64
}

func (e *ReturningMismatchError) Error() string {
	return fmt.Sprintf("returning data for table %q: expected %d rows, fetched %d", e.Table, e.Expected, e.Actual)
}

func (e *ReturningMismatchError) Unwrap() error { return ErrReturningMismatch }

// QueryError wraps a driver failure with the SQL that caused it.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v; SQL: %s", e.Err, strings.TrimSpace(e.SQL))
}

func (e *QueryError) Unwrap() error { return e.Err }
