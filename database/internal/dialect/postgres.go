package dialect

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

const postgresMaxIdentifierLength = 63

// Postgres is the full-featured profile: double-quoted identifiers with schemas,
// TRUE/FALSE literals, native JSON arrows, jsonb containment/existence operators and
// native RETURNING.
type Postgres struct{}

var postgresEncoder = literalEncoder{
	quoteString: quotePostgresString,
	boolLiteral: Postgres{}.BoolLiteral,
	bytes: func(b []byte) string {
		return `'\x` + hex.EncodeToString(b) + `'::bytea`
	},
	timeLayout: "2006-01-02 15:04:05.999999-07:00",
}

var postgresListOperators = map[string]bool{
	"@>": true,
	"<@": true,
	"?|": true,
	"?&": true,
	"&&": true,
}

func quotePostgresString(s string) (string, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", fmt.Errorf("string literal contains a NUL byte")
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
}

func (Postgres) Name() dbtypes.Vendor { return dbtypes.PostgreSQL }

func (Postgres) IdentifierQuote() byte { return '"' }

func (Postgres) QuoteIdentifier(name string) string {
	return quoteParts(name, '"')
}

func (p Postgres) QuoteTable(schema, table string) (string, error) {
	if schema == "" {
		return p.QuoteIdentifier(table), nil
	}
	return p.QuoteIdentifier(schema) + "." + p.QuoteIdentifier(table), nil
}

func (Postgres) QuoteValue(value any) (string, error) {
	return postgresEncoder.encode(value)
}

func (Postgres) BoolLiteral(value bool) string {
	if value {
		return "TRUE"
	}
	return "FALSE"
}

func (Postgres) MaxIdentifierLength() int { return postgresMaxIdentifierLength }

func (Postgres) IsValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

func (Postgres) Cast(expr, typeName string) string {
	return expr + "::" + typeName
}

// JSONSelector renders native arrow operators: "data"->'a'->>'b', "data"#>>'{a,b}'.
// Numeric keys address array elements and stay unquoted.
func (Postgres) JSONSelector(quotedColumn string, path []JSONStep) (string, error) {
	if err := validateJSONPath(path); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(quotedColumn)
	for _, step := range path {
		b.WriteString(step.Operator)
		switch step.Operator {
		case "#>", "#>>":
			lit, err := quotePostgresString("{" + strings.Join(splitPathKey(step.Key), ",") + "}")
			if err != nil {
				return "", err
			}
			b.WriteString(lit)
		default:
			if jsonIndex(step.Key) {
				b.WriteString(step.Key)
				continue
			}
			lit, err := quotePostgresString(step.Key)
			if err != nil {
				return "", err
			}
			b.WriteString(lit)
		}
	}
	return b.String(), nil
}

func (Postgres) RewriteOperator(operator string) (string, error) {
	return operator, nil
}

func (Postgres) IsListOperator(operator string) bool {
	return postgresListOperators[operator]
}

// AssembleCondition handles the jsonb and array operators whose right-hand side is not a
// plain literal list.
func (p Postgres) AssembleCondition(column, operator string, value any) (string, bool, error) {
	if _, isExpr := value.(dbtypes.RawExpression); isExpr {
		return "", false, nil
	}

	switch operator {
	case "?|", "?&", "&&":
		items, ok := ListValues(value)
		if !ok {
			return "", false, nil
		}
		if len(items) == 0 {
			return "", true, dbtypes.NewConditionValueError(dbtypes.ErrEmptyConditionValue, column, operator, "list cannot be empty")
		}
		quoted, err := quoteAll(p, items)
		if err != nil {
			return "", true, err
		}
		keyword := "array"
		if operator == "&&" {
			keyword = "ARRAY"
		}
		return fmt.Sprintf("%s %s %s[%s]", column, operator, keyword, strings.Join(quoted, ", ")), true, nil
	case "@>", "<@":
		var doc string
		switch v := value.(type) {
		case string:
			doc = v
		case json.RawMessage:
			doc = string(v)
		default:
			raw, err := json.Marshal(value)
			if err != nil {
				return "", true, fmt.Errorf("failed to encode %s operand for %s: %w", operator, column, err)
			}
			doc = string(raw)
		}
		lit, err := quotePostgresString(doc)
		if err != nil {
			return "", true, err
		}
		return fmt.Sprintf("%s %s %s::jsonb", column, operator, lit), true, nil
	}
	return "", false, nil
}

func (Postgres) SupportsReturning() bool { return true }

func (Postgres) SupportsDistinctOn() bool { return true }

func (Postgres) PlaceholderFormat() squirrel.PlaceholderFormat { return squirrel.Dollar }

// EscapePlaceholders doubles '?' so squirrel's Dollar format leaves jsonb operators and
// literal question marks alone.
func (Postgres) EscapePlaceholders(sql string) string {
	return strings.ReplaceAll(sql, "?", "??")
}
