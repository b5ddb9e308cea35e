package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/quillworks/taskboard/internal/types"
)

const (
	tasksPath       = "/api/tasks"
	maxRequestBytes = 1 << 20
)

// TaskStore captures the subset of storage.Storage needed by the task API.
type TaskStore interface {
	CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error)
	GetTask(ctx context.Context, id int64) (*types.Task, error)
	ListTasks(ctx context.Context, email string) ([]*types.Task, error)
	UpdateTask(ctx context.Context, id int64, update types.TaskUpdate) (*types.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// TaskHandlerOption configures optional behaviour for the task handlers.
type TaskHandlerOption func(*taskHandlerOptions)

type taskHandlerOptions struct {
	defaultEmail string
	logger       *slog.Logger
}

// WithDefaultEmail sets the partition key used when a request omits one.
func WithDefaultEmail(email string) TaskHandlerOption {
	return func(opts *taskHandlerOptions) {
		opts.defaultEmail = strings.TrimSpace(email)
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) TaskHandlerOption {
	return func(opts *taskHandlerOptions) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

type createRequest struct {
	Title     string `json:"title"`
	UserEmail string `json:"user_email,omitempty"`
}

// NewTasksHandler serves the collection endpoint: GET /api/tasks?email= lists
// one partition newest first, POST /api/tasks creates a task.
//
// Writes are not announced here; the store handed in is expected to publish
// change notifications itself.
func NewTasksHandler(store TaskStore, opts ...TaskHandlerOption) http.Handler {
	cfg := newTaskHandlerOptions(opts)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			WriteServiceUnavailable(w, "task storage unavailable", "")
			return
		}
		switch r.Method {
		case http.MethodGet:
			email := strings.TrimSpace(r.URL.Query().Get("email"))
			if email == "" {
				email = cfg.defaultEmail
			}
			tasks, err := store.ListTasks(r.Context(), email)
			if err != nil {
				cfg.fail(w, "list tasks failed", err, "email", email)
				return
			}
			if tasks == nil {
				tasks = []*types.Task{}
			}
			writeJSON(w, http.StatusOK, tasks)

		case http.MethodPost:
			defer r.Body.Close() // nolint:errcheck

			var req createRequest
			if err := decodeBody(r.Body, &req); err != nil {
				WriteJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
				return
			}
			title := strings.TrimSpace(req.Title)
			if title == "" {
				WriteJSONError(w, http.StatusBadRequest, "title is required", "")
				return
			}
			email := strings.TrimSpace(req.UserEmail)
			if email == "" {
				email = cfg.defaultEmail
			}

			task, err := store.CreateTask(r.Context(), types.NewTask{Title: title, UserEmail: email})
			if err != nil {
				cfg.fail(w, "create task failed", err, "email", email)
				return
			}
			w.Header().Set("Location", fmt.Sprintf("%s/%d", tasksPath, task.ID))
			writeJSON(w, http.StatusCreated, task)

		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// NewTaskHandler serves the item endpoint /api/tasks/{id}: GET reads one task,
// PATCH applies a partial update, DELETE removes it.
//
// PATCH applies exactly the fields given. The automation webhook writes its
// result back with {"enhanced_title": "..."}.
func NewTaskHandler(store TaskStore, opts ...TaskHandlerOption) http.Handler {
	cfg := newTaskHandlerOptions(opts)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseTaskPath(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		if store == nil {
			WriteServiceUnavailable(w, "task storage unavailable", "")
			return
		}

		switch r.Method {
		case http.MethodGet:
			task, err := store.GetTask(r.Context(), id)
			if err != nil {
				cfg.fail(w, "get task failed", err, "task_id", id)
				return
			}
			writeJSON(w, http.StatusOK, task)

		case http.MethodPatch:
			defer r.Body.Close() // nolint:errcheck

			var update types.TaskUpdate
			if err := decodeBody(r.Body, &update); err != nil {
				WriteJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
				return
			}
			if err := update.Validate(); err != nil {
				WriteJSONError(w, http.StatusBadRequest, err.Error(), "")
				return
			}
			if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
				WriteJSONError(w, http.StatusBadRequest, "title must not be empty", "")
				return
			}

			task, err := store.UpdateTask(r.Context(), id, update)
			if err != nil {
				cfg.fail(w, "update task failed", err, "task_id", id)
				return
			}
			writeJSON(w, http.StatusOK, task)

		case http.MethodDelete:
			if err := store.DeleteTask(r.Context(), id); err != nil {
				cfg.fail(w, "delete task failed", err, "task_id", id)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.Header().Set("Allow", "GET, PATCH, DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// Register mounts the task API on mux.
func Register(mux *http.ServeMux, store TaskStore, opts ...TaskHandlerOption) {
	mux.Handle(tasksPath, NewTasksHandler(store, opts...))
	mux.Handle(tasksPath+"/", NewTaskHandler(store, opts...))
}

func newTaskHandlerOptions(opts []TaskHandlerOption) taskHandlerOptions {
	cfg := taskHandlerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (o taskHandlerOptions) fail(w http.ResponseWriter, msg string, err error, args ...any) {
	status := statusForStoreError(err)
	if status >= http.StatusInternalServerError {
		o.logger.Error(msg, append(args, "error", err)...)
	}
	WriteJSONError(w, status, msg, err.Error())
}

func decodeBody(body io.Reader, dst any) error {
	dec := json.NewDecoder(io.LimitReader(body, maxRequestBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parseTaskPath(rawPath string) (int64, bool) {
	clean := path.Clean(rawPath)
	if !strings.HasPrefix(clean, tasksPath+"/") {
		return 0, false
	}

	raw := strings.TrimPrefix(clean, tasksPath+"/")
	if raw == "" || strings.Contains(raw, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
