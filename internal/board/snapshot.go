package board

import "github.com/quillworks/taskboard/internal/types"

// Snapshot is a consistent copy of the board's state for rendering.
type Snapshot struct {
	Email     string
	Input     string
	Tasks     []*types.Task
	Loaded    bool
	EditingID int64
	EditText  string
}

// Snapshot returns a copy of the board's current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Email:     b.email,
		Input:     b.input,
		Tasks:     cloneTasks(b.tasks),
		Loaded:    b.loaded,
		EditingID: b.editingID,
		EditText:  b.editText,
	}
}

// IsEditing reports whether the task with id is in edit mode.
func (s Snapshot) IsEditing(id int64) bool {
	return s.EditingID != 0 && s.EditingID == id
}

// Empty reports whether a loaded board has no tasks.
func (s Snapshot) Empty() bool {
	return s.Loaded && len(s.Tasks) == 0
}

// Completed returns the number of completed tasks.
func (s Snapshot) Completed() int {
	return types.CountCompleted(s.Tasks)
}
