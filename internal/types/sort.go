package types

import "sort"

// SortNewestFirst orders tasks by creation time, newest first. Ties (rows
// inserted within the same clock tick) fall back to the higher ID first so the
// order matches what the database returns for "ORDER BY created_at DESC, id DESC".
func SortNewestFirst(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// CountCompleted returns the number of completed tasks.
func CountCompleted(tasks []*Task) int {
	n := 0
	for _, t := range tasks {
		if t.IsComplete {
			n++
		}
	}
	return n
}
