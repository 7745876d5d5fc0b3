package store

import (
	"context"
	"fmt"
)

// ResolveInsertIndex clamps a requested insertion index to a valid slot in a
// collection of the given length. nil or past-the-end requests append;
// negative requests go to the front. The result is always in [0, length].
func ResolveInsertIndex(requested *int, length int) int {
	if requested == nil || *requested > length {
		return length
	}
	if *requested < 0 {
		return 0
	}
	return *requested
}

var sequencedTables = map[string]string{
	"columns": "board_id",
	"cards":   "column_id",
}

// resequence rewrites position to the index of each id in orderedIDs, scoped
// to one parent row so sibling collections are untouched. Runs on whatever
// queryer it is handed; callers are responsible for transaction boundaries.
func resequence(ctx context.Context, q dbtx, rebind func(string) string, table string, orderedIDs []int64, scopeID int64) error {
	scopeColumn, ok := sequencedTables[table]
	if !ok {
		return fmt.Errorf("resequence: invalid table %q", table)
	}
	query := rebind(fmt.Sprintf(
		`UPDATE %s SET position = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND %s = ?`,
		table, scopeColumn,
	))
	for index, id := range orderedIDs {
		if _, err := q.ExecContext(ctx, query, index, id, scopeID); err != nil {
			return fmt.Errorf("resequence %s: %w", table, err)
		}
	}
	return nil
}

// removeID returns ids without the first occurrence of id.
func removeID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, existing := range ids {
		if existing == id {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// insertID returns ids with id inserted at index.
func insertID(ids []int64, index int, id int64) []int64 {
	out := make([]int64, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	out = append(out, ids[index:]...)
	return out
}
