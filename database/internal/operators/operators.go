// Package operators canonicalizes comparison operators against the shape of their operand.
// It is dialect independent: dialect spelling is applied afterwards by the dialect profile.
package operators

import (
	"strings"
	"unicode"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// Shape classifies a condition operand.
type Shape int

const (
	Scalar Shape = iota
	Null
	List
	Expression
)

func (s Shape) String() string {
	switch s {
	case Null:
		return "null"
	case List:
		return "list"
	case Expression:
		return "expression"
	default:
		return "scalar"
	}
}

const (
	Equal    = "="
	NotEqual = "!="
	In       = "IN"
	NotIn    = "NOT IN"
	Is       = "IS"
	IsNot    = "IS NOT"
	Not      = "NOT"

	Between    = "BETWEEN"
	NotBetween = "NOT BETWEEN"
)

var aliases = map[string]string{
	"<>":         NotEqual,
	"==":         Equal,
	"REGEXP":     "~*",
	"REGEX":      "~*",
	"NOT REGEXP": "!~*",
	"NOT REGEX":  "!~*",
	"??":         "?",
	"??|":        "?|",
	"??&":        "?&",
}

var known = map[string]bool{
	Equal: true, NotEqual: true,
	"<": true, "<=": true, ">": true, ">=": true,
	In: true, NotIn: true,
	Between: true, NotBetween: true,
	"LIKE": true, "NOT LIKE": true, "ILIKE": true, "NOT ILIKE": true,
	"SIMILAR TO": true, "NOT SIMILAR TO": true,
	"~": true, "~*": true, "!~": true, "!~*": true,
	Is: true, IsNot: true, Not: true,
	"@>": true, "<@": true, "?": true, "?|": true, "?&": true, "&&": true,
}

// always accept a list operand
var listOperators = map[string]bool{In: true, NotIn: true, Between: true, NotBetween: true}

// never accept a scalar operand
var listOnlyOperators = map[string]bool{Between: true, NotBetween: true, "?|": true, "?&": true}

// fold upper-cases the operator and collapses inner whitespace ("not   in" -> "NOT IN").
func fold(operator string) string {
	return strings.ToUpper(strings.Join(strings.Fields(operator), " "))
}

// canonical folds operator and applies the spelling aliases.
func canonical(operator string) string {
	op := fold(operator)
	if alias, ok := aliases[op]; ok {
		return alias
	}
	return op
}

// Known reports whether operator is a recognized comparison token, aliases included.
func Known(operator string) bool {
	return known[canonical(operator)]
}

// Normalize maps operator and the shape of its operand to the canonical operator.
// isListOperator reports dialect-specific operators that accept a list; it may be nil.
//
//	Normalize("=", Null, nil)          // "IS"
//	Normalize("!=", List, nil)         // "NOT IN"
//	Normalize(">=", List, nil)         // ErrUnsupportedOperatorForListOperand
//	Normalize("BETWEEN", Scalar, nil)  // ErrUnsupportedOperatorForScalarOperand
func Normalize(operator string, shape Shape, isListOperator func(string) bool) (string, error) {
	op := canonical(operator)
	if op == "" {
		op = Equal
	}
	if !known[op] {
		return "", dbtypes.NewOperatorError(dbtypes.ErrUnknownOperator, operator, shape.String())
	}

	switch shape {
	case Null:
		if op == NotEqual || op == Not || op == IsNot {
			return IsNot, nil
		}
		return Is, nil

	case List:
		switch {
		case op == Equal:
			return In, nil
		case op == NotEqual:
			return NotIn, nil
		case listOperators[op], isListOperator != nil && isListOperator(op):
			return op, nil
		}
		return "", dbtypes.NewOperatorError(dbtypes.ErrUnsupportedOperatorForListOperand, operator, shape.String())

	case Expression:
		switch op {
		case In:
			return Equal, nil
		case NotIn:
			return NotEqual, nil
		}
		return op, nil

	default:
		switch {
		case op == In, op == Is:
			return Equal, nil
		case op == NotIn, op == Not, op == IsNot:
			return NotEqual, nil
		case listOnlyOperators[op]:
			return "", dbtypes.NewOperatorError(dbtypes.ErrUnsupportedOperatorForScalarOperand, operator, shape.String())
		}
		return op, nil
	}
}

// SplitKey splits a condition key into its column and trailing operator. The operator is
// the last whitespace-delimited token, or the last two or three tokens for operators such
// as "NOT IN" and "NOT SIMILAR TO". Keys without a recognized operator get "=".
//
//	SplitKey("age >=")            // "age", ">="
//	SplitKey("Owner.id not in")   // "Owner.id", "NOT IN"
//	SplitKey("data->>'a b'")      // "data->>'a b'", "="
func SplitKey(key string) (column, operator string) {
	key = strings.TrimSpace(key)
	starts := tokenStarts(key)
	for n := 3; n >= 1; n-- {
		if len(starts) <= n {
			continue
		}
		start := starts[len(starts)-n]
		if candidate := key[start:]; Known(candidate) {
			return strings.TrimSpace(key[:start]), fold(candidate)
		}
	}
	return key, Equal
}

// tokenStarts returns the byte offsets where whitespace-delimited tokens begin.
func tokenStarts(s string) []int {
	var starts []int
	inToken := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			inToken = false
			continue
		}
		if !inToken {
			starts = append(starts, i)
			inToken = true
		}
	}
	return starts
}
