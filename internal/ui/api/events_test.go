package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quillworks/taskboard/internal/types"
)

type stubEventSource struct {
	events      chan types.TaskEvent
	subscribed  chan struct{}
	returnError error
}

func newStubEventSource(buffer int) *stubEventSource {
	return &stubEventSource{
		events:     make(chan types.TaskEvent, buffer),
		subscribed: make(chan struct{}),
	}
}

func (s *stubEventSource) Subscribe(ctx context.Context) (<-chan types.TaskEvent, error) {
	if s.returnError != nil {
		return nil, s.returnError
	}
	close(s.subscribed)
	return s.events, nil
}

func runStream(t *testing.T, handler http.Handler) (*httptest.ResponseRecorder, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rr, req)
		close(done)
	}()
	return rr, cancel, done
}

func TestEventStreamDeliversTaskEvents(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2030, time.January, 12, 8, 30, 0, 0, time.UTC)
	source := newStubEventSource(1)
	handler := NewEventStreamHandler(
		source,
		WithHeartbeatInterval(0),
		WithNowFunc(func() time.Time { return fixed }),
	)

	rr, cancel, done := runStream(t, handler)
	defer cancel()

	select {
	case <-source.subscribed:
	case <-time.After(time.Second):
		t.Fatalf("event source was not subscribed")
	}

	source.events <- types.TaskEvent{Type: types.EventCreated, TaskID: 7, UserEmail: "demo@example.com", At: fixed}
	close(source.events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("event stream handler did not terminate")
	}

	body := rr.Body.String()
	if !strings.HasPrefix(body, ": stream online "+fixed.Format(time.RFC3339)) {
		t.Fatalf("expected opening comment with custom clock: %s", body)
	}
	if !strings.Contains(body, "event: created\n") {
		t.Fatalf("expected created event in output: %s", body)
	}
	if !strings.Contains(body, `"task_id":7`) {
		t.Fatalf("expected task payload in stream: %s", body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestEventStreamHeartbeat(t *testing.T) {
	t.Parallel()

	source := newStubEventSource(0)
	handler := NewEventStreamHandler(source, WithHeartbeatInterval(5*time.Millisecond))

	rr, cancel, done := runStream(t, handler)
	<-source.subscribed
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("event stream handler did not stop after cancel")
	}

	if !strings.Contains(rr.Body.String(), "event: heartbeat") {
		t.Fatalf("expected heartbeat in output: %s", rr.Body.String())
	}
}

func TestEventStreamUnavailable(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewEventStreamHandler(nil), http.MethodGet, "/api/events", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a source, got %d", rec.Code)
	}

	failing := &stubEventSource{returnError: errors.New("closed")}
	rec = serve(t, NewEventStreamHandler(failing), http.MethodGet, "/api/events", "")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "subscribe failed: closed") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, NewEventStreamHandler(failing), http.MethodPost, "/api/events", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
