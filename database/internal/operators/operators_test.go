package operators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtypes "github.com/gaborage/go-bricks-sql/database/types"
)

func pgListOperator(op string) bool {
	switch op {
	case "@>", "<@", "?|", "?&", "&&":
		return true
	}
	return false
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		shape    Shape
		expected string
		err      error
	}{
		{"equal null", "=", Null, "IS", nil},
		{"not equal null", "!=", Null, "IS NOT", nil},
		{"diamond null", "<>", Null, "IS NOT", nil},
		{"not null", "NOT", Null, "IS NOT", nil},
		{"is not null", "is not", Null, "IS NOT", nil},
		{"is null", "IS", Null, "IS", nil},
		{"empty operator null", "", Null, "IS", nil},

		{"equal list", "=", List, "IN", nil},
		{"not equal list", "!=", List, "NOT IN", nil},
		{"in list", "in", List, "IN", nil},
		{"not in list with spaces", "not   in", List, "NOT IN", nil},
		{"between list", "BETWEEN", List, "BETWEEN", nil},
		{"not between list", "not between", List, "NOT BETWEEN", nil},
		{"containment list", "@>", List, "@>", nil},
		{"exists any list", "?|", List, "?|", nil},
		{"escaped exists all list", "??&", List, "?&", nil},
		{"gte list", ">=", List, "", dbtypes.ErrUnsupportedOperatorForListOperand},
		{"like list", "LIKE", List, "", dbtypes.ErrUnsupportedOperatorForListOperand},

		{"in scalar", "IN", Scalar, "=", nil},
		{"not in scalar", "NOT IN", Scalar, "!=", nil},
		{"is scalar", "IS", Scalar, "=", nil},
		{"not scalar", "not", Scalar, "!=", nil},
		{"is not scalar", "IS NOT", Scalar, "!=", nil},
		{"between scalar", "BETWEEN", Scalar, "", dbtypes.ErrUnsupportedOperatorForScalarOperand},
		{"exists any scalar", "?|", Scalar, "", dbtypes.ErrUnsupportedOperatorForScalarOperand},
		{"exists scalar", "??", Scalar, "?", nil},
		{"regexp alias", "regexp", Scalar, "~*", nil},
		{"regex alias", "REGEX", Scalar, "~*", nil},
		{"not regexp alias", "not regexp", Scalar, "!~*", nil},
		{"ilike", "ilike", Scalar, "ILIKE", nil},

		{"in expression", "IN", Expression, "=", nil},
		{"not in expression", "NOT IN", Expression, "!=", nil},
		{"gt expression", ">", Expression, ">", nil},

		{"unknown", "=~=", Scalar, "", dbtypes.ErrUnknownOperator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.operator, tt.shape, pgListOperator)
			if tt.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
				var opErr *dbtypes.OperatorError
				require.True(t, errors.As(err, &opErr))
				assert.Equal(t, tt.operator, opErr.Operator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeWithoutDialectListOperators(t *testing.T) {
	_, err := Normalize("@>", List, nil)
	assert.ErrorIs(t, err, dbtypes.ErrUnsupportedOperatorForListOperand)
}

// Every operator crossed with every shape either normalizes to a known operator or fails
// with one of the documented errors.
func TestNormalizeTotality(t *testing.T) {
	operators := []string{"=", "!=", "<>", "<", "<=", ">", ">=", "IN", "NOT IN", "BETWEEN", "NOT BETWEEN",
		"LIKE", "NOT LIKE", "ILIKE", "NOT ILIKE", "SIMILAR TO", "NOT SIMILAR TO", "~", "~*", "!~", "!~*",
		"IS", "IS NOT", "NOT", "@>", "<@", "?", "?|", "?&", "&&", "REGEXP", "NOT REGEXP", "??", "??|", "??&"}
	shapes := []Shape{Null, Scalar, List, Expression}

	for _, op := range operators {
		for _, shape := range shapes {
			got, err := Normalize(op, shape, pgListOperator)
			if err != nil {
				assert.True(t,
					errors.Is(err, dbtypes.ErrUnsupportedOperatorForListOperand) ||
						errors.Is(err, dbtypes.ErrUnsupportedOperatorForScalarOperand),
					"%s/%s: unexpected error %v", op, shape, err)
				continue
			}
			assert.True(t, Known(got), "%s/%s normalized to unknown %q", op, shape, got)

			switch shape {
			case Null:
				assert.Contains(t, []string{"IS", "IS NOT"}, got, "%s/%s", op, shape)
			case List:
				assert.NotContains(t, []string{"=", "!="}, got, "%s/%s", op, shape)
			case Scalar:
				assert.NotContains(t, []string{"IN", "NOT IN", "IS", "IS NOT", "NOT", "BETWEEN"}, got, "%s/%s", op, shape)
			}
		}
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key      string
		column   string
		operator string
	}{
		{"status", "status", "="},
		{"  status  ", "status", "="},
		{"age >=", "age", ">="},
		{"name !=", "name", "!="},
		{"Owner.id not in", "Owner.id", "NOT IN"},
		{"deleted_at IS NOT", "deleted_at", "IS NOT"},
		{"price NOT BETWEEN", "price", "NOT BETWEEN"},
		{"title not similar to", "title", "NOT SIMILAR TO"},
		{"title similar to", "title", "SIMILAR TO"},
		{"email regexp", "email", "REGEXP"},
		{"data->>'first name'", "data->>'first name'", "="},
		{"data->>'first name' LIKE", "data->>'first name'", "LIKE"},
		{"IN", "IN", "="},
		{"", "", "="},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			column, operator := SplitKey(tt.key)
			assert.Equal(t, tt.column, column)
			assert.Equal(t, tt.operator, operator)
		})
	}
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "null", Null.String())
	assert.Equal(t, "list", List.String())
	assert.Equal(t, "scalar", Scalar.String())
	assert.Equal(t, "expression", Expression.String())
}
