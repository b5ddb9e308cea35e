// Package teststore provides isolated task stores and helpers for storage
// tests.
//
// Memory returns an in-process store. MySQL starts a throwaway MySQL server
// with testcontainers and skips the test when no container runtime is
// available. All helpers operate through the storage.Storage interface, so a
// test written against an Env runs unchanged on either backend.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    env := teststore.NewEnv(t, teststore.Memory)
//	    task := env.CreateTask("buy milk")
//	    env.AssertListed(task)
//	}
package teststore

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/storage/memory"
	"github.com/quillworks/taskboard/internal/storage/mysql"
	"github.com/quillworks/taskboard/internal/types"
)

// DefaultEmail is the partition Env helpers write to unless told otherwise.
const DefaultEmail = "test@example.com"

// MySQLImage is the server image used by MySQL.
const MySQLImage = "mysql:8.4"

// Opener creates an isolated store for one test.
type Opener func(t *testing.T) storage.Storage

// Memory returns an empty in-process store closed at the end of the test.
func Memory(t *testing.T) storage.Storage {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MySQL starts a MySQL container, opens a Store on it and tears both down
// at the end of the test. The test is skipped when Docker is unavailable.
func MySQL(t *testing.T) storage.Storage {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, MySQLImage,
		tcmysql.WithDatabase("taskboard"),
		tcmysql.WithUsername("taskboard"),
		tcmysql.WithPassword("taskboard"),
	)
	if err != nil {
		t.Fatalf("teststore: failed to start MySQL: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	dsn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("teststore: failed to read DSN: %v", err)
	}
	store, err := mysql.New(ctx, mysql.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("teststore: failed to open MySQL store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Env provides a test environment with common setup and helpers.
type Env struct {
	t     *testing.T
	Store storage.Storage
	Ctx   context.Context
}

// NewEnv creates a test environment on a store from open.
func NewEnv(t *testing.T, open Opener) *Env {
	t.Helper()
	return &Env{
		t:     t,
		Store: open(t),
		Ctx:   context.Background(),
	}
}

// ---------------------------------------------------------------------------
// Task helpers
// ---------------------------------------------------------------------------

// CreateTask creates a task with the given title in DefaultEmail's list.
func (e *Env) CreateTask(title string) *types.Task {
	e.t.Helper()
	return e.CreateTaskFor(DefaultEmail, title)
}

// CreateTaskFor creates a task in email's list.
func (e *Env) CreateTaskFor(email, title string) *types.Task {
	e.t.Helper()
	task, err := e.Store.CreateTask(e.Ctx, types.NewTask{Title: title, UserEmail: email})
	if err != nil {
		e.t.Fatalf("CreateTask(%q) failed: %v", title, err)
	}
	return task
}

// Update applies update to the task and returns the stored row.
func (e *Env) Update(task *types.Task, update types.TaskUpdate) *types.Task {
	e.t.Helper()
	updated, err := e.Store.UpdateTask(e.Ctx, task.ID, update)
	if err != nil {
		e.t.Fatalf("UpdateTask(%d, %v) failed: %v", task.ID, update.Fields(), err)
	}
	return updated
}

// Complete marks the task complete.
func (e *Env) Complete(task *types.Task) *types.Task {
	e.t.Helper()
	return e.Update(task, types.SetComplete(true))
}

// Enhance stores an enhanced title the way the automation webhook does.
func (e *Env) Enhance(task *types.Task, enhanced string) *types.Task {
	e.t.Helper()
	return e.Update(task, types.SetEnhancedTitle(enhanced))
}

// Delete removes the task.
func (e *Env) Delete(task *types.Task) {
	e.t.Helper()
	if err := e.Store.DeleteTask(e.Ctx, task.ID); err != nil {
		e.t.Fatalf("DeleteTask(%d) failed: %v", task.ID, err)
	}
}

// Get reads the task back from the store.
func (e *Env) Get(task *types.Task) *types.Task {
	e.t.Helper()
	got, err := e.Store.GetTask(e.Ctx, task.ID)
	if err != nil {
		e.t.Fatalf("GetTask(%d) failed: %v", task.ID, err)
	}
	return got
}

// ---------------------------------------------------------------------------
// Listing helpers
// ---------------------------------------------------------------------------

// List returns email's tasks.
func (e *Env) List(email string) []*types.Task {
	e.t.Helper()
	tasks, err := e.Store.ListTasks(e.Ctx, email)
	if err != nil {
		e.t.Fatalf("ListTasks(%q) failed: %v", email, err)
	}
	return tasks
}

// ListedIDs returns the ids in email's list, in list order.
func (e *Env) ListedIDs(email string) []int64 {
	e.t.Helper()
	tasks := e.List(email)
	ids := make([]int64, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

// AssertListed asserts that the task appears in its owner's list.
func (e *Env) AssertListed(task *types.Task) {
	e.t.Helper()
	for _, id := range e.ListedIDs(task.UserEmail) {
		if id == task.ID {
			return
		}
	}
	e.t.Errorf("expected task %d (%s) in %s's list", task.ID, task.Title, task.UserEmail)
}

// AssertNotListed asserts that the task does not appear in email's list.
func (e *Env) AssertNotListed(task *types.Task, email string) {
	e.t.Helper()
	for _, id := range e.ListedIDs(email) {
		if id == task.ID {
			e.t.Errorf("expected task %d (%s) not to be in %s's list", task.ID, task.Title, email)
			return
		}
	}
}
