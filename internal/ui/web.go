package ui

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/quillworks/taskboard/internal/board"
	"github.com/quillworks/taskboard/internal/ui/api"
	"github.com/quillworks/taskboard/internal/ui/templates"
)

// WebConfig configures the server-rendered board page.
type WebConfig struct {
	Sessions          *SessionManager
	AppTitle          string
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// Web serves the board page, its list fragment and the per-session refresh
// stream. Every form posts back and redirects to the page; a failed action
// leaves the page as it was.
type Web struct {
	sessions  *SessionManager
	title     string
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewWeb builds the page handlers.
func NewWeb(cfg WebConfig) *Web {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = api.DefaultHeartbeatInterval
	}
	return &Web{
		sessions:  cfg.Sessions,
		title:     cfg.AppTitle,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Register mounts the page routes on mux.
func (web *Web) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", web.handlePage)
	mux.HandleFunc("GET /ui/tasks", web.handleFragment)
	mux.HandleFunc("GET /ui/stream", web.handleStream)
	mux.HandleFunc("POST /ui/email", web.handleEmail)
	mux.HandleFunc("POST /ui/add", web.handleAdd)
	mux.HandleFunc("POST /ui/tasks/{id}/{action}", web.handleTaskAction)
}

func (web *Web) pageData(sess *Session) templates.PageData {
	return templates.PageData{
		AppTitle:  web.title,
		Board:     sess.Board.Snapshot(),
		StreamURL: "/ui/stream",
	}
}

func (web *Web) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := web.sessions.Session(w, r)
	// A page load re-reads the partition, like mounting the page does.
	_ = sess.Board.Refresh(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.RenderPage(w, web.pageData(sess)); err != nil {
		web.logger.Error("render page failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

func (web *Web) handleFragment(w http.ResponseWriter, r *http.Request) {
	sess := web.sessions.Session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.RenderTasks(w, web.pageData(sess)); err != nil {
		web.logger.Error("render task list failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// handleStream sends a "refresh" event whenever the session's board has
// re-fetched its tasks.
func (web *Web) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := web.sessions.Lookup(r)
	if !ok {
		api.WriteJSONError(w, http.StatusNotFound, "session not found", "reload the page")
		return
	}

	ctx := r.Context()
	changes := sess.Board.Changes(ctx)
	stream, err := api.StartStream(w, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var heartbeat <-chan time.Time
	if web.heartbeat > 0 {
		ticker := time.NewTicker(web.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			snap := sess.Board.Snapshot()
			if err := stream.Send("refresh", map[string]int{
				"total":     len(snap.Tasks),
				"completed": snap.Completed(),
			}); err != nil {
				return
			}
		case now := <-heartbeat:
			sess.touch(now)
			if err := stream.Heartbeat(now); err != nil {
				return
			}
		}
	}
}

func (web *Web) handleEmail(w http.ResponseWriter, r *http.Request) {
	sess := web.sessions.Session(w, r)
	if email := r.FormValue("email"); email != "" {
		_ = sess.Board.SetEmail(r.Context(), email)
	}
	redirectHome(w, r)
}

func (web *Web) handleAdd(w http.ResponseWriter, r *http.Request) {
	sess := web.sessions.Session(w, r)
	sess.Board.SetInput(r.FormValue("title"))
	if _, _, err := sess.Board.Submit(r.Context()); err != nil && !errors.Is(err, board.ErrEmptyTitle) {
		web.logger.Debug("add from page failed", "session", sess.ID, "error", err)
	}
	redirectHome(w, r)
}

func (web *Web) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}
	sess := web.sessions.Session(w, r)
	b := sess.Board
	ctx := r.Context()

	switch r.PathValue("action") {
	case "toggle":
		err = b.Toggle(ctx, id)
	case "edit":
		err = b.StartEdit(id)
	case "save":
		if editing, _ := b.Editing(); editing == id {
			b.SetEditText(r.FormValue("title"))
			err = b.CommitEdit(ctx)
		}
	case "cancel":
		b.CancelEdit()
	case "delete":
		err = b.Delete(ctx, id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		web.logger.Debug("task action failed", "action", r.PathValue("action"), "task_id", id, "error", err)
	}
	redirectHome(w, r)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

