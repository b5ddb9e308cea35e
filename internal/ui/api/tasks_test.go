package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/storage/memory"
	"github.com/quillworks/taskboard/internal/types"
)

func newTestMux(t *testing.T, store TaskStore) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	Register(mux, store,
		WithDefaultEmail("demo@example.com"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return mux
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) types.Task {
	t.Helper()
	var task types.Task
	if err := json.NewDecoder(rec.Body).Decode(&task); err != nil {
		t.Fatalf("decode task: %v (%s)", err, rec.Body.String())
	}
	return task
}

func TestCreateAndListTasks(t *testing.T) {
	mux := newTestMux(t, memory.New())

	rec := serve(t, mux, http.MethodPost, "/api/tasks", `{"title":"  buy milk  ","user_email":"ana@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	created := decodeTask(t, rec)
	if created.Title != "buy milk" || created.IsComplete || created.UserEmail != "ana@example.com" {
		t.Fatalf("unexpected created task %+v", created)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/tasks/1" {
		t.Fatalf("unexpected Location %q", loc)
	}

	rec = serve(t, mux, http.MethodGet, "/api/tasks?email=ana@example.com", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tasks []types.Task
	if err := json.NewDecoder(rec.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", tasks)
	}

	rec = serve(t, mux, http.MethodGet, "/api/tasks?email=other@example.com", "")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty JSON array for another partition, got %s", body)
	}
}

func TestCreateUsesDefaultEmail(t *testing.T) {
	mux := newTestMux(t, memory.New())

	rec := serve(t, mux, http.MethodPost, "/api/tasks", `{"title":"walk dog"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if task := decodeTask(t, rec); task.UserEmail != "demo@example.com" {
		t.Fatalf("expected default email, got %q", task.UserEmail)
	}

	rec = serve(t, mux, http.MethodGet, "/api/tasks", "")
	if !strings.Contains(rec.Body.String(), "walk dog") {
		t.Fatalf("list without email should use the default partition: %s", rec.Body.String())
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	store := &countingStore{Storage: memory.New()}
	mux := newTestMux(t, store)

	cases := map[string]string{
		"blank title":   `{"title":"   "}`,
		"missing title": `{}`,
		"malformed":     `{"title":`,
		"unknown field": `{"title":"x","priority":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, mux, http.MethodPost, "/api/tasks", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
			}
		})
	}
	if store.creates != 0 {
		t.Fatalf("expected no store calls, got %d", store.creates)
	}
}

func TestPatchTask(t *testing.T) {
	store := memory.New()
	mux := newTestMux(t, store)
	task, err := store.CreateTask(context.Background(), types.NewTask{Title: "buy milk", UserEmail: "demo@example.com"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	rec := serve(t, mux, http.MethodPatch, "/api/tasks/1", `{"enhanced_title":"Buy whole milk"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	got := decodeTask(t, rec)
	if got.ID != task.ID || got.EnhancedTitle != "Buy whole milk" || got.Title != "buy milk" {
		t.Fatalf("unexpected patched task %+v", got)
	}

	rec = serve(t, mux, http.MethodPatch, "/api/tasks/1", `{"is_complete":true}`)
	if got := decodeTask(t, rec); !got.IsComplete || got.EnhancedTitle != "Buy whole milk" {
		t.Fatalf("partial update touched other fields: %+v", got)
	}
}

func TestPatchTaskErrors(t *testing.T) {
	mux := newTestMux(t, memory.New())

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"empty update", "/api/tasks/1", `{}`, http.StatusBadRequest},
		{"blank title", "/api/tasks/1", `{"title":" "}`, http.StatusBadRequest},
		{"missing task", "/api/tasks/42", `{"is_complete":true}`, http.StatusNotFound},
		{"bad id", "/api/tasks/abc", `{"is_complete":true}`, http.StatusNotFound},
		{"nested path", "/api/tasks/1/extra", `{"is_complete":true}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, mux, http.MethodPatch, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDeleteTask(t *testing.T) {
	store := memory.New()
	mux := newTestMux(t, store)
	if _, err := store.CreateTask(context.Background(), types.NewTask{Title: "x", UserEmail: "demo@example.com"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	rec := serve(t, mux, http.MethodDelete, "/api/tasks/1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, err := store.GetTask(context.Background(), 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected task to be gone, got %v", err)
	}

	rec = serve(t, mux, http.MethodDelete, "/api/tasks/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a second delete, got %d", rec.Code)
	}
}

func TestStoreFailureIs500(t *testing.T) {
	store := &countingStore{Storage: memory.New(), err: errors.New("connection refused")}
	mux := newTestMux(t, store)

	rec := serve(t, mux, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var payload jsonErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Error != "list tasks failed" || payload.Details != "connection refused" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t, memory.New())

	rec := serve(t, mux, http.MethodPut, "/api/tasks", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, POST" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Allow"))
	}
	rec = serve(t, mux, http.MethodPost, "/api/tasks/1", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestNilStoreIsUnavailable(t *testing.T) {
	rec := serve(t, NewTasksHandler(nil), http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestWriteJSONErrorTrimsFields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusTeapot, "  short  ", "   ")
	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	want := []byte(`{"error":"short"}`)
	if got := bytes.TrimSpace(rec.Body.Bytes()); !bytes.Equal(got, want) {
		t.Fatalf("unexpected body %s", got)
	}
}

type countingStore struct {
	storage.Storage
	creates int
	err     error
}

func (s *countingStore) CreateTask(ctx context.Context, task types.NewTask) (*types.Task, error) {
	s.creates++
	if s.err != nil {
		return nil, s.err
	}
	return s.Storage.CreateTask(ctx, task)
}

func (s *countingStore) ListTasks(ctx context.Context, email string) ([]*types.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.Storage.ListTasks(ctx, email)
}
