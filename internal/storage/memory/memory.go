// Package memory implements an in-process task store for development and tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/types"
)

// Store keeps tasks in a map guarded by a mutex. It mirrors the column
// semantics of the SQL backend: IDs are assigned sequentially, created_at
// is set on insert, updated_at on every write.
type Store struct {
	mu      sync.RWMutex
	tasks   map[int64]*types.Task
	nextID  int64
	version uint64
	closed  bool
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tasks: make(map[int64]*types.Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ storage.Storage = (*Store)(nil)
var _ storage.ChangeDetector = (*Store)(nil)

func (s *Store) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	s.nextID++
	now := s.now().UTC()
	t := &types.Task{
		ID:        s.nextID,
		Title:     task.Title,
		UserEmail: task.UserEmail,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tasks[t.ID] = t
	s.version++
	return t.Clone(), nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *Store) ListTasks(ctx context.Context, email string) ([]*types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	out := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.UserEmail == email {
			out = append(out, t.Clone())
		}
	}
	types.SortNewestFirst(out)
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, id int64, update types.TaskUpdate) (*types.Task, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	update.Apply(t)
	t.UpdatedAt = s.now().UTC()
	s.version++
	return t.Clone(), nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, storage.ErrNotFound)
	}
	delete(s.tasks, id)
	s.version++
	return nil
}

// Fingerprint returns the write counter.
func (s *Store) Fingerprint(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strconv.FormatUint(s.version, 10), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
