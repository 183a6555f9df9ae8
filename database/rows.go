package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// scanRows reads every row into a map keyed by column name and closes rows.
// Byte slices from textual columns are returned as strings; binary columns keep []byte.
func scanRows(rows *sql.Rows) (cols []string, result []map[string]any, err error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	cols, err = rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	binary := binaryColumns(rows, len(cols))

	result = make([]map[string]any, 0)
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok && !binary[i] {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, result, nil
}

func binaryColumns(rows *sql.Rows, n int) []bool {
	binary := make([]bool, n)
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return binary
	}
	for i, ct := range colTypes {
		name := strings.ToUpper(ct.DatabaseTypeName())
		binary[i] = strings.Contains(name, "BLOB") || strings.Contains(name, "BINARY") || name == "BYTEA"
	}
	return binary
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil //nolint:gosec // row counts fit in int64
	case float64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected numeric value of type %T", value)
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	case nil:
		return false, nil
	}
	n, err := toInt64(value)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}
