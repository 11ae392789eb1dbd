package realtime

import "github.com/wolfeidau/pricescout/internal/provider"

// merge applies a single row change to a local collection and returns the
// updated slice.
//
// Inserts of an id already present are no-ops, which guards against an
// insert event racing a snapshot that already contained the row. Updates
// for an unknown id fall back to an insert so a missed event cannot leave
// the collection permanently stale. Deletes of an absent id are silent
// no-ops.
func merge[T any](rows []T, typ provider.ChangeType, newRow, oldRow T, id func(T) string) []T {
	switch typ {
	case provider.ChangeInsert:
		newID := id(newRow)
		for i := range rows {
			if id(rows[i]) == newID {
				return rows
			}
		}
		return append(rows, newRow)

	case provider.ChangeUpdate:
		newID := id(newRow)
		for i := range rows {
			if id(rows[i]) == newID {
				rows[i] = newRow
				return rows
			}
		}
		return append(rows, newRow)

	case provider.ChangeDelete:
		oldID := id(oldRow)
		for i := range rows {
			if id(rows[i]) == oldID {
				return append(rows[:i], rows[i+1:]...)
			}
		}
		return rows

	default:
		return rows
	}
}
