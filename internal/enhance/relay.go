// Package enhance relays "enhance this task title" requests from front ends
// to an external automation webhook.
//
// The webhook is expected to rewrite the title and store it in the task's
// enhanced_title column on its own; the relay only delivers the request and
// reports whether the webhook accepted it. Nothing is retried.
package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/quillworks/taskboard/internal/telemetry"
	"github.com/quillworks/taskboard/internal/ui/api"
)

// DefaultEmail is sent to the webhook when neither the request nor the
// configuration supplies one.
const DefaultEmail = "demo@example.com"

// Path is where Relay.Handler is mounted.
const Path = "/api/enhance-task"

// Request is the relay input. UserEmail is optional.
type Request struct {
	TaskID    int64  `json:"taskId"`
	Title     string `json:"title"`
	UserEmail string `json:"userEmail,omitempty"`
}

// webhookPayload is the body sent to the automation webhook. Field order is
// part of the contract with existing webhook flows.
type webhookPayload struct {
	TaskID    int64  `json:"taskId"`
	Title     string `json:"title"`
	UserEmail string `json:"userEmail"`
}

// RelayConfig configures a Relay.
type RelayConfig struct {
	// WebhookURL is resolved at call time; an empty value fails each call
	// with a ConfigurationError instead of failing at startup.
	WebhookURL   string
	DefaultEmail string
	HTTPClient   *http.Client
	// Timeout bounds each webhook call. Zero means no timeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Relay forwards enhancement requests to the webhook. It holds no mutable
// state and is safe for concurrent use.
type Relay struct {
	webhookURL   string
	defaultEmail string
	client       *http.Client
	timeout      time.Duration
	logger       *slog.Logger
}

// NewRelay builds a relay from cfg.
func NewRelay(cfg RelayConfig) *Relay {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	email := strings.TrimSpace(cfg.DefaultEmail)
	if email == "" {
		email = DefaultEmail
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	relayMetricsOnce.Do(initRelayMetrics)
	return &Relay{
		webhookURL:   strings.TrimSpace(cfg.WebhookURL),
		defaultEmail: email,
		client:       client,
		timeout:      cfg.Timeout,
		logger:       logger,
	}
}

// relayMetrics holds lazily-initialized OTel instruments for webhook calls.
var relayMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

var relayMetricsOnce sync.Once

func initRelayMetrics() {
	m := telemetry.Meter("github.com/quillworks/taskboard/enhance")
	relayMetrics.requests, _ = m.Int64Counter("taskboard.enhance.requests",
		metric.WithDescription("Enhancement requests forwarded to the webhook, by outcome"),
	)
	relayMetrics.duration, _ = m.Float64Histogram("taskboard.enhance.webhook.duration",
		metric.WithDescription("Webhook call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// Forward sends req to the webhook. It returns *ConfigurationError when no
// webhook URL is configured, *UpstreamError for a non-2xx response and
// *EnhancementError for transport failures.
func (r *Relay) Forward(ctx context.Context, req Request) (err error) {
	tracer := telemetry.Tracer("github.com/quillworks/taskboard/enhance")
	ctx, span := tracer.Start(ctx, "enhance.relay.forward")
	span.SetAttributes(attribute.Int64("taskboard.task.id", req.TaskID))
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = outcomeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		if relayMetrics.requests != nil {
			relayMetrics.requests.Add(ctx, 1, attrs)
			relayMetrics.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
		span.End()
	}()

	if r.webhookURL == "" {
		return &ConfigurationError{}
	}

	email := strings.TrimSpace(req.UserEmail)
	if email == "" {
		email = r.defaultEmail
	}
	body, err := json.Marshal(webhookPayload{
		TaskID:    req.TaskID,
		Title:     req.Title,
		UserEmail: email,
	})
	if err != nil {
		return &EnhancementError{Op: "encode payload", Err: err}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookURL, bytes.NewReader(body))
	if err != nil {
		return &EnhancementError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return &EnhancementError{Op: "call webhook", Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck
	// The response body is not inspected; drain it so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Enhance implements board.Enhancer.
func (r *Relay) Enhance(ctx context.Context, taskID int64, title, email string) error {
	return r.Forward(ctx, Request{TaskID: taskID, Title: title, UserEmail: email})
}

// Handler serves POST /api/enhance-task. Success answers 200
// {"success":true}; every failure answers 500 {"error":"<short message>"}.
func (r *Relay) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer req.Body.Close() // nolint:errcheck

		var in Request
		if err := json.NewDecoder(io.LimitReader(req.Body, 1<<20)).Decode(&in); err != nil {
			r.fail(w, fmt.Errorf("%w: %v", ErrInvalidRequest, err), in)
			return
		}
		if in.TaskID <= 0 {
			r.fail(w, fmt.Errorf("%w: missing task id", ErrInvalidRequest), in)
			return
		}

		// Delivery continues if the caller goes away.
		if err := r.Forward(context.WithoutCancel(req.Context()), in); err != nil {
			r.fail(w, err, in)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
}

func (r *Relay) fail(w http.ResponseWriter, err error, in Request) {
	r.logger.Error("enhance task failed", "task_id", in.TaskID, "error", err)
	api.WriteJSONError(w, http.StatusInternalServerError, publicMessage(err), "")
}

func outcomeOf(err error) string {
	switch err.(type) {
	case *ConfigurationError:
		return "configuration_error"
	case *UpstreamError:
		return "upstream_error"
	default:
		return "enhancement_error"
	}
}
