package teststore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/types"
)

// RunContract runs the behavior every Storage backend must share against
// stores from open.
func RunContract(t *testing.T, open Opener) {
	t.Run("CreateAssignsDefaults", func(t *testing.T) {
		env := NewEnv(t, open)
		task := env.CreateTask("buy milk")
		if task.ID <= 0 {
			t.Fatalf("expected a positive id, got %d", task.ID)
		}
		if task.IsComplete || task.EnhancedTitle != "" {
			t.Errorf("new task should be open and unenhanced: %+v", task)
		}
		if task.CreatedAt.IsZero() {
			t.Error("created_at not set")
		}
		env.AssertListed(task)
	})

	t.Run("ListNewestFirstPerEmail", func(t *testing.T) {
		env := NewEnv(t, open)
		first := env.CreateTask("first")
		time.Sleep(5 * time.Millisecond)
		second := env.CreateTask("second")
		other := env.CreateTaskFor("other@example.com", "not mine")

		ids := env.ListedIDs(DefaultEmail)
		if len(ids) != 2 || ids[0] != second.ID || ids[1] != first.ID {
			t.Errorf("expected [%d %d], got %v", second.ID, first.ID, ids)
		}
		env.AssertNotListed(other, DefaultEmail)
		if got := env.List("nobody@example.com"); len(got) != 0 {
			t.Errorf("expected empty list, got %d tasks", len(got))
		}
	})

	t.Run("UpdateIsPartial", func(t *testing.T) {
		env := NewEnv(t, open)
		task := env.CreateTask("call mom")
		env.Enhance(task, "Call mom about Sunday dinner")
		done := env.Complete(task)
		if !done.IsComplete || done.Title != "call mom" || done.EnhancedTitle != "Call mom about Sunday dinner" {
			t.Errorf("completion touched other fields: %+v", done)
		}

		edited := env.Update(task, types.EditTitle("call dad"))
		if edited.Title != "call dad" || edited.EnhancedTitle != "" || !edited.IsComplete {
			t.Errorf("edit should replace the title and clear the enhancement: %+v", edited)
		}
		if got := env.Get(task); got.DisplayTitle() != "call dad" {
			t.Errorf("stored display title = %q", got.DisplayTitle())
		}
	})

	t.Run("EmptyUpdateRejected", func(t *testing.T) {
		env := NewEnv(t, open)
		task := env.CreateTask("x")
		_, err := env.Store.UpdateTask(env.Ctx, task.ID, types.TaskUpdate{})
		if !errors.Is(err, types.ErrEmptyUpdate) {
			t.Errorf("expected ErrEmptyUpdate, got %v", err)
		}
	})

	t.Run("MissingTask", func(t *testing.T) {
		env := NewEnv(t, open)
		if _, err := env.Store.GetTask(env.Ctx, 4242); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetTask: expected ErrNotFound, got %v", err)
		}
		if _, err := env.Store.UpdateTask(env.Ctx, 4242, types.SetComplete(true)); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("UpdateTask: expected ErrNotFound, got %v", err)
		}
		if err := env.Store.DeleteTask(env.Ctx, 4242); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("DeleteTask: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		env := NewEnv(t, open)
		task := env.CreateTask("walk dog")
		env.Delete(task)
		env.AssertNotListed(task, DefaultEmail)
		if _, err := env.Store.GetTask(env.Ctx, task.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("FingerprintTracksWrites", func(t *testing.T) {
		env := NewEnv(t, open)
		detector, ok := env.Store.(storage.ChangeDetector)
		if !ok {
			t.Skip("backend does not detect changes")
		}
		fingerprint := func() string {
			t.Helper()
			fp, err := detector.Fingerprint(env.Ctx)
			if err != nil {
				t.Fatalf("Fingerprint failed: %v", err)
			}
			return fp
		}

		before := fingerprint()
		if again := fingerprint(); again != before {
			t.Errorf("fingerprint changed without writes: %q -> %q", before, again)
		}
		task := env.CreateTask("x")
		afterCreate := fingerprint()
		if afterCreate == before {
			t.Error("fingerprint unchanged after insert")
		}
		time.Sleep(5 * time.Millisecond)
		env.Complete(task)
		afterUpdate := fingerprint()
		if afterUpdate == afterCreate {
			t.Error("fingerprint unchanged after update")
		}
		env.Delete(task)
		if fingerprint() == afterUpdate {
			t.Error("fingerprint unchanged after delete")
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		env := NewEnv(t, open)
		ctx, cancel := context.WithCancel(env.Ctx)
		cancel()
		if _, err := env.Store.ListTasks(ctx, DefaultEmail); err == nil {
			t.Error("expected an error from a cancelled context")
		}
	})
}
