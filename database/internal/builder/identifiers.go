package builder

import (
	"errors"
	"fmt"
	"strings"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

// processExpression renders a raw expression for this build: backtick identifiers are
// quoted for the dialect and join names used as qualifiers become short aliases.
func (b *build) processExpression(expr dbtypes.RawExpression) (string, error) {
	return b.rewriteIdentifiers(expr.SQL, true)
}

// rewriteIdentifiers re-quotes `identifiers` outside string literals. With substitute set,
// a qualifier naming the base alias or a join is replaced by its short alias; unknown
// qualifiers are left for validateAliases.
func (b *build) rewriteIdentifiers(sql string, substitute bool) (string, error) {
	var out strings.Builder
	out.Grow(len(sql))
	backslash := b.d.Name() == dbtypes.MySQL

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch c {
		case '\'':
			end := skipLiteral(sql, i, '\'', backslash)
			out.WriteString(sql[i:end])
			i = end - 1
		case '`':
			closing := strings.IndexByte(sql[i+1:], '`')
			if closing < 0 {
				return "", fmt.Errorf("unterminated identifier in expression %q", sql)
			}
			ident := sql[i+1 : i+1+closing]
			i += closing + 1
			qualifies := i+1 < len(sql) && sql[i+1] == '.'
			if substitute && qualifies {
				q, ok, err := b.knownQualifier(ident)
				if err != nil {
					return "", err
				}
				if ok {
					out.WriteString(q)
					continue
				}
			}
			out.WriteString(b.d.QuoteIdentifier(ident))
		default:
			out.WriteByte(c)
		}
	}
	return out.String(), nil
}

func (b *build) knownQualifier(name string) (string, bool, error) {
	if name == b.q.alias {
		return b.d.QuoteIdentifier(b.baseShort), true, nil
	}
	if b.cteNames[name] {
		return b.d.QuoteIdentifier(name), true, nil
	}
	short, err := b.ensureJoin(name, b.context)
	if errors.Is(err, dbtypes.ErrMissingJoin) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return b.d.QuoteIdentifier(short), true, nil
}

// skipLiteral returns the index just past the string literal opening at start.
func skipLiteral(sql string, start int, quote byte, backslash bool) int {
	for i := start + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			if backslash {
				i++
			}
		case quote:
			if i+1 < len(sql) && sql[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(sql)
}

type identToken struct {
	name      string
	declared  bool
	qualifies bool
}

// validateAliases checks that every quoted identifier used as a qualifier in sql is
// declared: a table or alias introduced by FROM, JOIN or AS, a CTE, or a schema.
func (b *build) validateAliases(sql string) error {
	tokens := scanIdentifiers(sql, b.d.IdentifierQuote(), b.d.Name() == dbtypes.MySQL)

	known := map[string]bool{b.baseShort: true}
	for _, short := range b.joinShort {
		known[short] = true
	}
	for name := range b.cteNames {
		known[name] = true
	}
	if b.q.schema != "" {
		known[b.q.schema] = true
	}
	for _, j := range b.joins {
		if j.ForeignSchema != "" {
			known[j.ForeignSchema] = true
		}
	}
	for _, t := range tokens {
		if t.declared {
			known[t.name] = true
		}
	}

	for _, t := range tokens {
		if !t.qualifies || known[t.name] {
			continue
		}
		name := t.name
		if long, ok := b.aliases.TableLong(name); ok {
			name = long
		}
		return &dbtypes.MissingJoinError{Join: name, Context: "query"}
	}
	return nil
}

func scanIdentifiers(sql string, quote byte, mysql bool) []identToken {
	var (
		tokens   []identToken
		prevWord string
	)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || (mysql && c == '"'):
			i = skipLiteral(sql, i, c, mysql) - 1
			prevWord = ""
		case c == quote:
			var name strings.Builder
			j := i + 1
			for ; j < len(sql); j++ {
				if sql[j] == quote {
					if j+1 < len(sql) && sql[j+1] == quote {
						name.WriteByte(quote)
						j++
						continue
					}
					break
				}
				name.WriteByte(sql[j])
			}
			i = j
			tokens = append(tokens, identToken{
				name:      name.String(),
				declared:  prevWord == "AS" || prevWord == "FROM" || prevWord == "JOIN",
				qualifies: i+1 < len(sql) && sql[i+1] == '.',
			})
			prevWord = ""
		case isWordByte(c):
			j := i
			for j < len(sql) && isWordByte(sql[j]) {
				j++
			}
			prevWord = strings.ToUpper(sql[i:j])
			i = j - 1
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			prevWord = ""
		}
	}
	return tokens
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
