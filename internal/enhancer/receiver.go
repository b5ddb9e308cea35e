package enhancer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/quillworks/taskboard/internal/types"
	"github.com/quillworks/taskboard/internal/ui/api"
)

// DefaultJobTimeout bounds one rewrite plus write-back.
const DefaultJobTimeout = 2 * time.Minute

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	Rewriter   Rewriter
	Writer     TaskWriter
	JobTimeout time.Duration
	Logger     *slog.Logger
}

// Receiver is the webhook endpoint. It acknowledges every valid request with
// 202 and does the work afterwards, so the relay never waits on the model.
type Receiver struct {
	rewriter Rewriter
	writer   TaskWriter
	timeout  time.Duration
	logger   *slog.Logger
	jobs     sync.WaitGroup
}

// payload is what the relay sends.
type payload struct {
	TaskID    int64  `json:"taskId"`
	Title     string `json:"title"`
	UserEmail string `json:"userEmail"`
}

// NewReceiver builds a receiver.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		rewriter: cfg.Rewriter,
		writer:   cfg.Writer,
		timeout:  timeout,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler.
func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close() // nolint:errcheck

	var in payload
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
		api.WriteJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.TaskID <= 0 || in.Title == "" {
		api.WriteJSONError(w, http.StatusBadRequest, "taskId and title are required", "")
		return
	}

	rc.jobs.Add(1)
	go rc.process(context.WithoutCancel(r.Context()), in)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]bool{"accepted": true})
}

func (rc *Receiver) process(ctx context.Context, in payload) {
	defer rc.jobs.Done()
	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	logger := rc.logger.With("task_id", in.TaskID, "email", in.UserEmail)
	enhanced, err := rc.rewriter.Rewrite(ctx, in.Title)
	if err != nil {
		logger.Error("rewrite title failed", "error", err)
		return
	}
	if _, err := rc.writer.UpdateTask(ctx, in.TaskID, types.SetEnhancedTitle(enhanced)); err != nil {
		// The task may have been deleted while the model was thinking.
		logger.Warn("store enhanced title failed", "error", err)
		return
	}
	logger.Info("task title enhanced", "enhanced_title", enhanced)
}

// Wait blocks until every accepted request has been processed or ctx is done.
func (rc *Receiver) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		rc.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
