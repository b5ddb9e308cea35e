package ui

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/quillworks/taskboard/internal/eventbus"
	"github.com/quillworks/taskboard/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSessionCookieRoundTrip(t *testing.T) {
	m := NewSessionManager(SessionConfig{
		Store:        memory.New(),
		DefaultEmail: "demo@example.com",
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer m.Close()

	rec := httptest.NewRecorder()
	first := m.Session(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookie || cookies[0].Value != first.ID {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatalf("session cookie should be HttpOnly")
	}
	if got := first.Board.Email(); got != "demo@example.com" {
		t.Fatalf("new session should start on the default email, got %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	if again := m.Session(rec, req); again != first {
		t.Fatalf("expected the same session for the same cookie")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("existing session should not reset its cookie")
	}

	stale := httptest.NewRequest(http.MethodGet, "/", nil)
	stale.AddCookie(&http.Cookie{Name: SessionCookie, Value: "gone"})
	if _, ok := m.Lookup(stale); ok {
		t.Fatalf("lookup must not invent sessions")
	}
}

func TestSessionSweepEvictsIdle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	dispatcher := eventbus.NewDispatcher(4)
	m := NewSessionManager(SessionConfig{
		Store:  memory.New(),
		Source: dispatcher,
		TTL:    10 * time.Minute,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    clock.Now,
	})
	defer m.Close()

	idle := m.Session(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	clock.Advance(6 * time.Minute)
	active := m.Session(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	waitSubscribers(t, dispatcher, 2)

	clock.Advance(5 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: idle.ID})
	if _, ok := m.Lookup(req); ok {
		t.Fatalf("idle session should be gone")
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: active.ID})
	if _, ok := m.Lookup(req); !ok {
		t.Fatalf("active session should survive")
	}

	// The evicted board stops watching the change feed.
	waitSubscribers(t, dispatcher, 1)
}

func waitSubscribers(t *testing.T, d *eventbus.Dispatcher, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.Subscribers() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", want, d.Subscribers())
		}
		time.Sleep(time.Millisecond)
	}
}
