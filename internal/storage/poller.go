package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillworks/taskboard/internal/types"
)

// DefaultPollInterval is how often Poller checks the fingerprint.
const DefaultPollInterval = 2 * time.Second

// Poller detects writes made outside this program (another process, the
// automation webhook talking to the database directly, manual SQL) and
// publishes an EventChanged notification for each observed change.
type Poller struct {
	detector  ChangeDetector
	publisher EventPublisher
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPoller builds a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(detector ChangeDetector, publisher EventPublisher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		detector:  detector,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled. The first fingerprint is the baseline and
// produces no event. Poll errors are logged and the previous baseline kept.
func (p *Poller) Run(ctx context.Context) error {
	last, err := p.detector.Fingerprint(ctx)
	if err != nil {
		p.logger.Warn("change poller baseline failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current, err := p.detector.Fingerprint(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Warn("change poller fingerprint failed", "error", err)
				continue
			}
			if current == last {
				continue
			}
			last = current
			p.logger.Debug("out-of-band change detected", "fingerprint", current)
			p.publisher.Publish(types.TaskEvent{
				Type: types.EventChanged,
				At:   p.now().UTC(),
			})
		}
	}
}
