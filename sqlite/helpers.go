package sqlite

import (
	"fmt"
	"strings"
	"time"
)

// parseTime decodes a timestamp column stored as RFC 3339 text.
func parseTime(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", column, value, err)
	}
	return t, nil
}

// paginate adds LIMIT and OFFSET clauses for non-zero values. An offset
// without a limit needs LIMIT -1 since SQLite rejects a bare OFFSET.
func paginate(query *strings.Builder, args *[]any, limit, offset int) {
	switch {
	case limit > 0:
		query.WriteString(" LIMIT ?")
		*args = append(*args, limit)
	case offset > 0:
		query.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		query.WriteString(" OFFSET ?")
		*args = append(*args, offset)
	}
}
