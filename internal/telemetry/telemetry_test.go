package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/storage/memory"
	"github.com/quillworks/taskboard/internal/types"
)

func TestWrapStorageDisabledReturnsInner(t *testing.T) {
	t.Setenv("TASKBOARD_OTEL_ENABLED", "")
	inner := memory.New()
	if got := WrapStorage(inner); got != storage.Storage(inner) {
		t.Fatalf("expected inner store when telemetry is disabled, got %T", got)
	}
}

func TestInitDisabledInstallsNoop(t *testing.T) {
	t.Setenv("TASKBOARD_OTEL_ENABLED", "false")
	if err := Init(context.Background(), "taskboard", "test"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Shutdown(context.Background())
}

func TestInstrumentedStoragePassesThrough(t *testing.T) {
	// Global providers are no-op here; the decorator must still forward
	// results and errors unchanged.
	s := newInstrumentedStorage(memory.New())
	ctx := context.Background()

	created, err := s.CreateTask(ctx, types.NewTask{Title: "buy milk", UserEmail: "demo@example.com"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	tasks, err := s.ListTasks(ctx, "demo@example.com")
	if err != nil || len(tasks) != 1 {
		t.Fatalf("ListTasks = %d tasks, err %v", len(tasks), err)
	}
	if _, err := s.UpdateTask(ctx, created.ID, types.SetComplete(true)); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if err := s.DeleteTask(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	before, err := s.Fingerprint(ctx)
	if err != nil || before == "" {
		t.Fatalf("Fingerprint = %q, %v", before, err)
	}
}
