package board

import (
	"context"
	"fmt"

	"github.com/quillworks/taskboard/internal/types"
)

// StartEdit puts the task into edit mode with the buffer seeded from its
// displayed title. Starting another edit replaces the current one.
func (b *Board) StartEdit(id int64) error {
	task, ok := b.lookup(id)
	if !ok {
		return fmt.Errorf("edit %d: %w", id, ErrUnknownTask)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editingID = id
	b.editText = task.DisplayTitle()
	return nil
}

// SetEditText replaces the edit buffer. It is ignored when no task is in
// edit mode.
func (b *Board) SetEditText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.editingID == 0 {
		return
	}
	b.editText = text
}

// Editing returns the id of the task in edit mode (0 for none) and the buffer.
func (b *Board) Editing() (int64, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.editingID, b.editText
}

// CommitEdit stores the buffer as the task's title and clears its enhanced
// title. Edit mode ends locally whether or not the write succeeds; a failed
// write leaves the old title visible after the next refresh. With no task in
// edit mode this is a no-op.
func (b *Board) CommitEdit(ctx context.Context) error {
	b.mu.Lock()
	id, text := b.editingID, b.editText
	b.editingID = 0
	b.editText = ""
	b.mu.Unlock()

	if id == 0 {
		return nil
	}
	return b.Update(ctx, id, types.EditTitle(text))
}

// CancelEdit leaves edit mode without writing.
func (b *Board) CancelEdit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editingID = 0
	b.editText = ""
}
