package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/quillworks/taskboard/internal/types"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	PassStyle     = lipgloss.NewStyle().Foreground(ColorPass)
	FailStyle     = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
	DoneStyle     = lipgloss.NewStyle().Foreground(ColorMuted).Strikethrough(true)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

const (
	IconDone = "✓"
	IconOpen = "○"
	IconFail = "✗"

	TreeLast = "└─ "
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ShouldStyle reports whether output to w should carry ANSI styling.
// NO_COLOR disables styling everywhere.
func ShouldStyle(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return IsTerminal(w)
}

// TaskRenderer writes task lists for the terminal.
type TaskRenderer struct {
	Styled bool
}

func (r TaskRenderer) render(style lipgloss.Style, s string) string {
	if !r.Styled {
		return s
	}
	return style.Render(s)
}

// RenderFail renders an error line.
func (r TaskRenderer) RenderFail(s string) string {
	return r.render(FailStyle, IconFail+" "+s)
}

// Task renders one task: a status icon, the id and the displayed title, with
// the original title on a second line when the title was enhanced.
func (r TaskRenderer) Task(t *types.Task) string {
	icon := r.render(MutedStyle, IconOpen)
	title := t.DisplayTitle()
	if t.IsComplete {
		icon = r.render(PassStyle, IconDone)
		title = r.render(DoneStyle, title)
	}
	if !r.Styled && t.IsComplete {
		title = "~" + title + "~"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", icon, r.render(AccentStyle, fmt.Sprintf("#%d", t.ID)), title)
	if t.IsEnhanced() {
		fmt.Fprintf(&b, "\n     %s", r.render(MutedStyle, TreeLast+"Original: "+t.Title))
	}
	return b.String()
}

// List writes a header with counts, then one entry per task, or an empty
// state line.
func (r TaskRenderer) List(w io.Writer, email string, tasks []*types.Task) error {
	header := fmt.Sprintf("%s (%d/%d done)", email, types.CountCompleted(tasks), len(tasks))
	if _, err := fmt.Fprintln(w, r.render(CategoryStyle, header)); err != nil {
		return err
	}
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, r.render(MutedStyle, "No tasks yet."))
		return err
	}
	for _, t := range tasks {
		if _, err := fmt.Fprintln(w, r.Task(t)); err != nil {
			return err
		}
	}
	return nil
}
