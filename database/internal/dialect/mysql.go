package dialect

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

const mysqlMaxIdentifierLength = 64

// MySQL is the reduced-feature profile: backtick identifiers without schemas, 1/0
// booleans, JSON paths lowered to JSON_EXTRACT, regex operators spelled REGEXP, no jsonb
// operators and no RETURNING.
type MySQL struct{}

var mysqlEncoder = literalEncoder{
	quoteString: func(s string) (string, error) { return quoteMySQLString(s), nil },
	boolLiteral: MySQL{}.BoolLiteral,
	bytes: func(b []byte) string {
		return "X'" + hex.EncodeToString(b) + "'"
	},
	timeLayout: "2006-01-02 15:04:05.999999",
}

var mysqlOperatorRewrites = map[string]string{
	"~*":        "REGEXP",
	"!~*":       "NOT REGEXP",
	"~":         "REGEXP BINARY",
	"!~":        "NOT REGEXP BINARY",
	"ILIKE":     "LIKE",
	"NOT ILIKE": "NOT LIKE",
}

var mysqlUnsupportedOperators = map[string]bool{
	"?":              true,
	"?|":             true,
	"?&":             true,
	"@>":             true,
	"<@":             true,
	"&&":             true,
	"SIMILAR TO":     true,
	"NOT SIMILAR TO": true,
}

// quoteMySQLString escapes s the way the server parses string literals with the default
// sql_mode (backslash escapes enabled).
func quoteMySQLString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\x1a':
			b.WriteString(`\Z`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func (MySQL) Name() dbtypes.Vendor { return dbtypes.MySQL }

func (MySQL) IdentifierQuote() byte { return '`' }

func (MySQL) QuoteIdentifier(name string) string {
	return quoteParts(name, '`')
}

func (m MySQL) QuoteTable(schema, table string) (string, error) {
	if schema != "" {
		return "", fmt.Errorf("%w: schema-qualified table %s.%s", dbtypes.ErrUnsupportedByDialect, schema, table)
	}
	return m.QuoteIdentifier(table), nil
}

func (MySQL) QuoteValue(value any) (string, error) {
	return mysqlEncoder.encode(value)
}

func (MySQL) BoolLiteral(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

func (MySQL) MaxIdentifierLength() int { return mysqlMaxIdentifierLength }

func (MySQL) IsValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

func (MySQL) Cast(expr, typeName string) string {
	t := strings.ToLower(strings.TrimSpace(typeName))
	if alias, ok := castAliases[t]; ok {
		t = alias
	} else {
		t = strings.ToUpper(t)
	}
	return "CAST(" + expr + " AS " + t + ")"
}

// JSONSelector renders a single -> / ->> step natively (`data`->>'$.name') and lowers
// longer paths and #> / #>> to JSON_EXTRACT, unquoted with JSON_UNQUOTE when the last step
// selects text.
func (MySQL) JSONSelector(quotedColumn string, path []JSONStep) (string, error) {
	if err := validateJSONPath(path); err != nil {
		return "", err
	}

	var jp strings.Builder
	jp.WriteString("$")
	for _, step := range path {
		keys := []string{step.Key}
		if step.Operator == "#>" || step.Operator == "#>>" {
			keys = splitPathKey(step.Key)
		}
		for _, key := range keys {
			switch {
			case jsonIndex(key):
				jp.WriteString("[" + key + "]")
			case identifierPattern.MatchString(key):
				jp.WriteString("." + key)
			default:
				jp.WriteString(`."` + strings.ReplaceAll(key, `"`, `\"`) + `"`)
			}
		}
	}
	pathLit := quoteMySQLString(jp.String())

	last := path[len(path)-1].Operator
	if len(path) == 1 && (last == "->" || last == "->>") {
		return quotedColumn + last + pathLit, nil
	}
	extract := "JSON_EXTRACT(" + quotedColumn + ", " + pathLit + ")"
	if strings.HasSuffix(last, ">>") {
		return "JSON_UNQUOTE(" + extract + ")", nil
	}
	return extract, nil
}

func (MySQL) RewriteOperator(operator string) (string, error) {
	if mysqlUnsupportedOperators[operator] {
		return "", fmt.Errorf("%w: operator %q", dbtypes.ErrUnsupportedByDialect, operator)
	}
	if rewritten, ok := mysqlOperatorRewrites[operator]; ok {
		return rewritten, nil
	}
	return operator, nil
}

func (MySQL) IsListOperator(string) bool { return false }

func (MySQL) AssembleCondition(string, string, any) (string, bool, error) {
	return "", false, nil
}

func (MySQL) SupportsReturning() bool { return false }

func (MySQL) SupportsDistinctOn() bool { return false }

func (MySQL) PlaceholderFormat() squirrel.PlaceholderFormat { return squirrel.Question }

func (MySQL) EscapePlaceholders(sql string) string { return sql }
