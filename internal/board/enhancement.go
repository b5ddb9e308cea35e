package board

import (
	"context"
	"time"

	"github.com/quillworks/taskboard/internal/types"
)

// Enhancement tracks one fire-and-forget enhancement request. Nobody is
// required to wait on it; its outcome is logged either way.
type Enhancement struct {
	TaskID int64
	done   chan struct{}
	err    error
}

// Done is closed when the request has finished.
func (e *Enhancement) Done() <-chan struct{} {
	return e.done
}

// Err returns the request's error. It is only meaningful after Done is closed.
func (e *Enhancement) Err() error {
	select {
	case <-e.done:
		return e.err
	default:
		return nil
	}
}

// Wait blocks until the request finishes or ctx is done.
func (e *Enhancement) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startEnhancement runs the request on a context detached from the caller's
// cancellation, so a finished HTTP request or a closed page does not abort it.
func (b *Board) startEnhancement(ctx context.Context, task *types.Task) *Enhancement {
	e := &Enhancement{TaskID: task.ID, done: make(chan struct{})}
	detached := context.WithoutCancel(ctx)

	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		defer close(e.done)

		start := time.Now()
		e.err = b.enhancer.Enhance(detached, task.ID, task.Title, task.UserEmail)
		if e.err != nil {
			b.logger.Warn("enhancement request failed", "task_id", task.ID, "error", e.err)
			return
		}
		b.logger.Debug("enhancement requested", "task_id", task.ID, "elapsed", time.Since(start))
	}()
	return e
}
