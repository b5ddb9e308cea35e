package ui

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillworks/taskboard/internal/board"
	"github.com/quillworks/taskboard/internal/eventbus"
	"github.com/quillworks/taskboard/internal/storage"
)

const (
	// SessionCookie names the cookie carrying the browser's session id.
	SessionCookie = "taskboard_session"
	// DefaultSessionTTL is how long an idle session is kept.
	DefaultSessionTTL = 30 * time.Minute
)

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	Store        storage.Storage
	Source       eventbus.Source
	Enhancer     board.Enhancer
	DefaultEmail string
	TTL          time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Session is one browser's board.
type Session struct {
	ID    string
	Board *board.Board

	cancel   context.CancelFunc
	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionManager maps session cookies to boards. Each board watches the
// change feed for as long as its session lives.
type SessionManager struct {
	cfg SessionConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager returns a manager. Close stops every session's watcher.
func NewSessionManager(cfg SessionConfig) *SessionManager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Session returns the request's session, creating one and setting the cookie
// when the request has none or its session was evicted.
func (m *SessionManager) Session(w http.ResponseWriter, r *http.Request) *Session {
	now := m.cfg.Now()
	if c, err := r.Cookie(SessionCookie); err == nil {
		m.mu.Lock()
		sess, ok := m.sessions[c.Value]
		m.mu.Unlock()
		if ok {
			sess.touch(now)
			return sess
		}
	}

	sess := m.create(r.Context(), now)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// Lookup returns an existing session without creating one.
func (m *SessionManager) Lookup(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	sess, ok := m.sessions[c.Value]
	m.mu.Unlock()
	if ok {
		sess.touch(m.cfg.Now())
	}
	return sess, ok
}

func (m *SessionManager) create(reqCtx context.Context, now time.Time) *Session {
	opts := []board.Option{board.WithLogger(m.cfg.Logger)}
	if m.cfg.Enhancer != nil {
		opts = append(opts, board.WithEnhancer(m.cfg.Enhancer))
	}
	b := board.New(m.cfg.Store, m.cfg.DefaultEmail, opts...)

	ctx, cancel := context.WithCancel(m.ctx)
	sess := &Session{
		ID:       uuid.NewString(),
		Board:    b,
		cancel:   cancel,
		lastSeen: now,
	}

	if m.cfg.Source != nil {
		go func() {
			if err := b.Watch(ctx, m.cfg.Source); err != nil {
				m.cfg.Logger.Warn("session watch stopped", "session", sess.ID, "error", err)
			}
		}()
	}
	// Errors are logged by the board; the page renders whatever loaded.
	_ = b.Refresh(reqCtx)

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	m.cfg.Logger.Debug("session created", "session", sess.ID)
	return sess
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (m *SessionManager) Sweep() int {
	cutoff := m.cfg.Now().Add(-m.cfg.TTL)

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.cancel()
		m.cfg.Logger.Debug("session evicted", "session", sess.ID)
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps idle sessions periodically until ctx is cancelled, then closes
// the manager.
func (m *SessionManager) Run(ctx context.Context) error {
	interval := m.cfg.TTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer m.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.cfg.Logger.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// Close stops every session's watcher and forgets all sessions.
func (m *SessionManager) Close() {
	m.cancel()
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
}
