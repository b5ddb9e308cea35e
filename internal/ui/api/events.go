package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quillworks/taskboard/internal/eventbus"
)

// DefaultHeartbeatInterval is the time between heartbeat events on an idle stream.
const DefaultHeartbeatInterval = 30 * time.Second

// EventStreamOption configures the SSE handler.
type EventStreamOption func(*eventStreamConfig)

type eventStreamConfig struct {
	heartbeatInterval time.Duration
	now               func() time.Time
}

// WithHeartbeatInterval overrides the interval between heartbeat events.
// Zero disables heartbeats.
func WithHeartbeatInterval(interval time.Duration) EventStreamOption {
	return func(cfg *eventStreamConfig) {
		cfg.heartbeatInterval = interval
	}
}

// WithNowFunc injects a custom clock, primarily for tests.
func WithNowFunc(now func() time.Time) EventStreamOption {
	return func(cfg *eventStreamConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// NewEventStreamHandler returns an HTTP handler that serves the raw task
// change feed as Server-Sent Events. Each event is named after its type and
// carries the JSON-encoded types.TaskEvent.
func NewEventStreamHandler(source eventbus.Source, opts ...EventStreamOption) http.Handler {
	cfg := eventStreamConfig{
		heartbeatInterval: DefaultHeartbeatInterval,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if source == nil {
			WriteServiceUnavailable(w, "event stream unavailable", "no change feed is configured")
			return
		}

		ctx := r.Context()
		events, err := source.Subscribe(ctx)
		if err != nil {
			WriteServiceUnavailable(w, "event stream unavailable", fmt.Sprintf("subscribe failed: %v", err))
			return
		}

		stream, err := StartStream(w, cfg.now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		heartbeat, stop := heartbeatTicker(cfg.heartbeatInterval)
		defer stop()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if err := stream.Send(string(evt.Type), evt); err != nil {
					return
				}
			case <-heartbeat:
				if err := stream.Heartbeat(cfg.now()); err != nil {
					return
				}
			}
		}
	})
}

// Stream writes Server-Sent Events to a flushing response.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// StartStream sets the event-stream headers and writes an opening comment.
// It fails when the response writer cannot flush.
func StartStream(w http.ResponseWriter, now time.Time) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if _, err := fmt.Fprintf(w, ": stream online %s\n\n", now.UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	flusher.Flush()
	return &Stream{w: w, flusher: flusher}, nil
}

// Send writes one named event with a JSON payload and flushes it.
func (s *Stream) Send(event string, payload any) error {
	if err := writeSSEEvent(s.w, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Heartbeat sends a heartbeat event stamped with now.
func (s *Stream) Heartbeat(now time.Time) error {
	return s.Send("heartbeat", map[string]string{
		"at": now.UTC().Format(time.RFC3339),
	})
}

func heartbeatTicker(interval time.Duration) (<-chan time.Time, func()) {
	if interval <= 0 {
		return nil, func() {}
	}
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

func writeSSEEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
