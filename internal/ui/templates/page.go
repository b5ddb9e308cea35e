package templates

import (
	"bytes"
	"io"

	"github.com/quillworks/taskboard/internal/board"
)

// PageData captures the state required to render the board page.
type PageData struct {
	AppTitle string
	Board    board.Snapshot
	// StreamURL is the per-session refresh stream. Empty disables live updates.
	StreamURL string
	// FragmentURL is fetched to replace the task list after a refresh event.
	FragmentURL string
}

func (d PageData) withDefaults() PageData {
	if d.AppTitle == "" {
		d.AppTitle = "Task Board"
	}
	if d.FragmentURL == "" {
		d.FragmentURL = "/ui/tasks"
	}
	return d
}

// RenderPage writes the full page.
func RenderPage(w io.Writer, data PageData) error {
	return execute(w, "page", data.withDefaults())
}

// RenderTasks writes only the task list fragment.
func RenderTasks(w io.Writer, data PageData) error {
	return execute(w, "tasks", data.withDefaults())
}

func execute(w io.Writer, name string, data PageData) error {
	tmpl, err := Parse()
	if err != nil {
		return err
	}
	// Render into a buffer so a template error never leaves a half-written page.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}
