package types

import (
	"testing"
	"time"
)

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want string
	}{
		{name: "plain", task: Task{Title: "buy milk"}, want: "buy milk"},
		{name: "enhanced", task: Task{Title: "buy milk", EnhancedTitle: "Buy 2L of whole milk"}, want: "Buy 2L of whole milk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.DisplayTitle(); got != tt.want {
				t.Fatalf("DisplayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEditTitleClearsEnhancement(t *testing.T) {
	task := Task{Title: "buy milk", EnhancedTitle: "Buy whole milk"}
	upd := EditTitle("buy oat milk")
	if err := upd.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	upd.Apply(&task)
	if task.Title != "buy oat milk" {
		t.Fatalf("title = %q", task.Title)
	}
	if task.EnhancedTitle != "" {
		t.Fatalf("enhanced title not cleared: %q", task.EnhancedTitle)
	}
	if task.DisplayTitle() != "buy oat milk" {
		t.Fatalf("display title = %q", task.DisplayTitle())
	}
}

func TestEmptyUpdateRejected(t *testing.T) {
	if err := (TaskUpdate{}).Validate(); err != ErrEmptyUpdate {
		t.Fatalf("expected ErrEmptyUpdate, got %v", err)
	}
}

func TestUpdateFields(t *testing.T) {
	upd := SetComplete(true)
	fields := upd.Fields()
	if len(fields) != 1 || fields[0] != "is_complete" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if got := EditTitle("x").Fields(); len(got) != 2 {
		t.Fatalf("expected title and enhanced_title, got %v", got)
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tasks := []*Task{
		{ID: 1, CreatedAt: base},
		{ID: 3, CreatedAt: base.Add(time.Minute)},
		{ID: 2, CreatedAt: base},
	}
	SortNewestFirst(tasks)
	want := []int64{3, 2, 1}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("position %d: got id %d, want %d", i, tasks[i].ID, id)
		}
	}
}

func TestCountCompleted(t *testing.T) {
	tasks := []*Task{{IsComplete: true}, {}, {IsComplete: true}}
	if n := CountCompleted(tasks); n != 2 {
		t.Fatalf("CountCompleted = %d", n)
	}
}
