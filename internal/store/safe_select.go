package store

import (
	"context"
	"fmt"
	"strings"
)

// forbidden SQL fragments for dynamically generated queries. Checked against
// the uppercased statement, so comment markers are caught too.
var forbiddenSQL = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE",
	"EXEC", "TRUNCATE", "--", ";--", "/*",
}

// ValidateSelect checks that sql is a lone SELECT statement free of
// forbidden keywords. Returns a reason when invalid.
func ValidateSelect(sql string) (bool, string) {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	if !strings.HasPrefix(upper, "SELECT") {
		return false, "Only SELECT queries are allowed"
	}
	for _, keyword := range forbiddenSQL {
		if strings.Contains(upper, keyword) {
			return false, fmt.Sprintf("Forbidden keyword: %s", keyword)
		}
	}
	return true, "Query passed validation"
}

// ExecuteSafeSelect runs a validated SELECT statement and returns generic
// rows. A LIMIT 50 is appended when the statement has none.
func (s *Store) ExecuteSafeSelect(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	if ok, reason := ValidateSelect(sql); !ok {
		return nil, fmt.Errorf("%s", reason)
	}

	if !strings.Contains(strings.ToUpper(sql), "LIMIT") {
		sql = strings.TrimRight(strings.TrimSpace(sql), ";") + " LIMIT 50"
	}

	rows, err := s.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		refs := make([]any, len(columns))
		for i := range values {
			refs[i] = &values[i]
		}
		if err := rows.Scan(refs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
