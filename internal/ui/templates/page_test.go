package templates

import (
	"bytes"
	"strings"
	"testing"

	"github.com/quillworks/taskboard/internal/board"
	"github.com/quillworks/taskboard/internal/types"
)

func renderTasks(t *testing.T, snap board.Snapshot) string {
	t.Helper()
	var buf bytes.Buffer
	if err := RenderTasks(&buf, PageData{Board: snap}); err != nil {
		t.Fatalf("RenderTasks: %v", err)
	}
	return buf.String()
}

func TestRenderTasksEmptyState(t *testing.T) {
	out := renderTasks(t, board.Snapshot{Email: "demo@example.com", Loaded: true})
	if !strings.Contains(out, "No tasks yet") {
		t.Fatalf("expected empty-state message, got %s", out)
	}

	out = renderTasks(t, board.Snapshot{Email: "demo@example.com"})
	if strings.Contains(out, "No tasks yet") {
		t.Fatalf("empty-state message shown before the first load: %s", out)
	}
}

func TestRenderTasksShowsOriginalTitle(t *testing.T) {
	out := renderTasks(t, board.Snapshot{
		Loaded: true,
		Tasks: []*types.Task{
			{ID: 3, Title: "buy milk", EnhancedTitle: "Buy whole milk <2L>"},
			{ID: 2, Title: "walk dog", IsComplete: true},
		},
	})

	if !strings.Contains(out, "Buy whole milk &lt;2L&gt;") {
		t.Fatalf("expected escaped enhanced title, got %s", out)
	}
	if !strings.Contains(out, "Original: buy milk") {
		t.Fatalf("expected original title line, got %s", out)
	}
	if strings.Count(out, "Original:") != 1 {
		t.Fatalf("original line should only appear for enhanced tasks: %s", out)
	}
	if !strings.Contains(out, `id="task-2" class="done"`) {
		t.Fatalf("completed task should be marked done: %s", out)
	}
	if !strings.Contains(out, `action="/ui/tasks/3/toggle"`) {
		t.Fatalf("expected toggle form action: %s", out)
	}
}

func TestRenderTasksEditMode(t *testing.T) {
	out := renderTasks(t, board.Snapshot{
		Loaded:    true,
		EditingID: 3,
		EditText:  "Buy whole milk",
		Tasks: []*types.Task{
			{ID: 3, Title: "buy milk", EnhancedTitle: "Buy whole milk"},
			{ID: 2, Title: "walk dog"},
		},
	})

	if !strings.Contains(out, `action="/ui/tasks/3/save"`) {
		t.Fatalf("expected save form for the edited task: %s", out)
	}
	if !strings.Contains(out, `value="Buy whole milk"`) {
		t.Fatalf("edit input should carry the buffer: %s", out)
	}
	if !strings.Contains(out, "requestSubmit") {
		t.Fatalf("edit input should commit on blur: %s", out)
	}
	if strings.Contains(out, `action="/ui/tasks/3/edit"`) {
		t.Fatalf("edited task should not offer an edit button: %s", out)
	}
	if !strings.Contains(out, `action="/ui/tasks/2/edit"`) {
		t.Fatalf("other tasks keep their edit button: %s", out)
	}
}

func TestRenderPage(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPage(&buf, PageData{
		Board:     board.Snapshot{Email: "ana@example.com", Input: "half typed", Loaded: true},
		StreamURL: "/ui/stream",
	})
	if err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>Task Board</title>",
		`value="ana@example.com"`,
		`value="half typed"`,
		"new EventSource(",
		`addEventListener("refresh"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("page missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := RenderPage(&buf, PageData{Board: board.Snapshot{Loaded: true}}); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if strings.Contains(buf.String(), "EventSource") {
		t.Fatalf("stream script rendered without a stream URL")
	}
}
