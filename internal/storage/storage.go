// Package storage provides the task data-service interface and shared helpers.
//
// Concrete backends live in the mysql and memory sub-packages; the factory
// sub-package opens one by name. Consumers depend on the Storage interface so
// that decorators (event publishing, telemetry) and test fakes can be swapped in.
package storage

import (
	"context"
	"errors"

	"github.com/quillworks/taskboard/internal/types"
)

// ErrNotFound is returned when a requested task does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("storage closed")

// Storage is the data service behind every front end.
type Storage interface {
	// CreateTask inserts a row and returns it with ID and timestamps assigned.
	CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error)
	GetTask(ctx context.Context, id int64) (*types.Task, error)
	// ListTasks returns the tasks whose user_email equals email, newest first.
	ListTasks(ctx context.Context, email string) ([]*types.Task, error)
	// UpdateTask applies a partial update and returns the resulting row.
	UpdateTask(ctx context.Context, id int64, update types.TaskUpdate) (*types.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	Close() error
}

// ChangeDetector is implemented by backends that can cheaply report whether
// the table changed, including writes made by other programs.
type ChangeDetector interface {
	// Fingerprint returns a value that differs whenever any row was inserted,
	// updated or deleted since the previous call.
	Fingerprint(ctx context.Context) (string, error)
}
