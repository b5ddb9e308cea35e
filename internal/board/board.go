// Package board keeps an eventually-consistent, in-memory mirror of one
// partition of the task table and implements the user operations on it.
//
// A Board never changes its mirror optimistically. Writes go to the store and
// the mirror is replaced wholesale by the next Refresh, which is normally
// triggered by a change notification (see Watch). Store failures are logged
// and returned; the mirror keeps its last good state.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/types"
)

var (
	// ErrEmptyTitle is returned by Add for empty or whitespace-only input.
	ErrEmptyTitle = errors.New("task title is empty")
	// ErrUnknownTask is returned when an id is not in the board's mirror.
	ErrUnknownTask = errors.New("task not on board")
)

// Enhancer requests an improved title for a newly created task. The result
// arrives later through the store, not through the return value.
type Enhancer interface {
	Enhance(ctx context.Context, taskID int64, title, email string) error
}

// Option configures a Board.
type Option func(*Board)

// WithEnhancer makes Add request an enhancement for every new task.
func WithEnhancer(e Enhancer) Option {
	return func(b *Board) {
		b.enhancer = e
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Board is safe for concurrent use. Operations are not serialized against
// each other: two in-flight writes may complete in either order.
type Board struct {
	store    storage.Storage
	enhancer Enhancer
	logger   *slog.Logger

	mu        sync.RWMutex
	email     string
	tasks     []*types.Task
	loaded    bool
	input     string
	editingID int64
	editText  string

	// Refresh results are applied only if no newer refresh has been applied.
	refreshSeq uint64
	appliedSeq uint64

	listenersMu sync.Mutex
	listeners   map[chan struct{}]struct{}

	pending sync.WaitGroup
}

// New returns a board for the partition identified by email. The mirror is
// empty until the first Refresh.
func New(store storage.Storage, email string, opts ...Option) *Board {
	b := &Board{
		store:     store,
		email:     strings.TrimSpace(email),
		logger:    slog.Default(),
		listeners: make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Email returns the current partition key.
func (b *Board) Email() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.email
}

// Refresh re-reads the board's partition from the store and replaces the
// mirror. On failure the stale mirror is kept and the error returned.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.refreshSeq++
	seq := b.refreshSeq
	email := b.email
	b.mu.Unlock()

	tasks, err := b.store.ListTasks(ctx, email)
	if err != nil {
		b.logger.Error("fetch tasks failed", "email", email, "error", err)
		return fmt.Errorf("fetch tasks: %w", err)
	}

	b.mu.Lock()
	if email != b.email || seq < b.appliedSeq {
		// The partition changed or a newer refresh already landed.
		b.mu.Unlock()
		return nil
	}
	b.appliedSeq = seq
	b.tasks = tasks
	b.loaded = true
	b.mu.Unlock()

	b.notify()
	return nil
}

// Add inserts a task with the trimmed text. Empty input is rejected without
// touching the store. When an enhancer is configured, the returned
// Enhancement tracks the fire-and-forget enhancement request.
func (b *Board) Add(ctx context.Context, text string) (*types.Task, *Enhancement, error) {
	title := strings.TrimSpace(text)
	if title == "" {
		return nil, nil, ErrEmptyTitle
	}

	email := b.Email()
	task, err := b.store.CreateTask(ctx, types.NewTask{Title: title, UserEmail: email})
	if err != nil {
		b.logger.Error("insert task failed", "email", email, "error", err)
		return nil, nil, fmt.Errorf("insert task: %w", err)
	}

	if b.enhancer == nil {
		return task, nil, nil
	}
	return task, b.startEnhancement(ctx, task), nil
}

// SetInput replaces the add-form buffer.
func (b *Board) SetInput(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.input = text
}

// Input returns the add-form buffer.
func (b *Board) Input() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.input
}

// Submit adds the add-form buffer. The buffer is cleared only on success.
func (b *Board) Submit(ctx context.Context) (*types.Task, *Enhancement, error) {
	text := b.Input()
	task, enh, err := b.Add(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	b.mu.Lock()
	if b.input == text {
		b.input = ""
	}
	b.mu.Unlock()
	return task, enh, nil
}

// Update applies a partial update to the task with the given id.
func (b *Board) Update(ctx context.Context, id int64, update types.TaskUpdate) error {
	if _, err := b.store.UpdateTask(ctx, id, update); err != nil {
		b.logger.Error("update task failed", "task_id", id, "fields", update.Fields(), "error", err)
		return fmt.Errorf("update task %d: %w", id, err)
	}
	return nil
}

// Toggle flips the completion flag relative to the mirror's current value.
func (b *Board) Toggle(ctx context.Context, id int64) error {
	task, ok := b.lookup(id)
	if !ok {
		return fmt.Errorf("toggle %d: %w", id, ErrUnknownTask)
	}
	return b.Update(ctx, id, types.SetComplete(!task.IsComplete))
}

// Delete removes the task. The mirror changes only on the next refresh.
func (b *Board) Delete(ctx context.Context, id int64) error {
	if err := b.store.DeleteTask(ctx, id); err != nil {
		b.logger.Error("delete task failed", "task_id", id, "error", err)
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// SetEmail switches the partition key and refreshes.
func (b *Board) SetEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	b.mu.Lock()
	if email != b.email {
		b.email = email
		b.tasks = nil
		b.loaded = false
		b.editingID = 0
		b.editText = ""
	}
	b.mu.Unlock()
	return b.Refresh(ctx)
}

// Tasks returns a copy of the mirror, newest first.
func (b *Board) Tasks() []*types.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneTasks(b.tasks)
}

func (b *Board) lookup(id int64) (*types.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return nil, false
}

// Wait blocks until every outstanding enhancement has finished or ctx is done.
func (b *Board) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cloneTasks(tasks []*types.Task) []*types.Task {
	if tasks == nil {
		return nil
	}
	out := make([]*types.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
