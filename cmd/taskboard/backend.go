package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quillworks/taskboard/internal/board"
	"github.com/quillworks/taskboard/internal/config"
	"github.com/quillworks/taskboard/internal/enhance"
	"github.com/quillworks/taskboard/internal/eventbus"
	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/storage/factory"
	"github.com/quillworks/taskboard/internal/telemetry"
)

// storeOpener opens the configured backend. Tests replace it.
var storeOpener = factory.New

// dispatcherBuffer is the per-subscriber queue length.
const dispatcherBuffer = 64

// backend is the store, change feed and enhancer shared by one command.
type backend struct {
	// Store publishes an event for every write made through it.
	Store      storage.Storage
	Dispatcher *eventbus.Dispatcher
	Bridge     *eventbus.NATSBridge
	// Poller is set when the backend can see writes made by other programs.
	Poller *storage.Poller
	// Relay is set when this process forwards to the webhook itself.
	Relay    *enhance.Relay
	Enhancer board.Enhancer
	Origin   string
}

// openBackend opens storage and connects the change feed. Every writer in
// the process must use b.Store so that views are notified.
func openBackend(ctx context.Context, logger *slog.Logger) (*backend, error) {
	db := config.Database()
	base, err := storeOpener(ctx, db.Backend, factory.Options{
		DSN:      db.DSN,
		Password: db.Password,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", backendName(db.Backend), err)
	}

	b := &backend{
		Dispatcher: eventbus.NewDispatcher(dispatcherBuffer),
		Origin:     uuid.NewString(),
	}

	events := config.Events()
	if events.NATSURL != "" {
		b.Bridge, err = eventbus.ConnectNATS(eventbus.NATSConfig{
			URL:     events.NATSURL,
			Subject: events.NATSSubject,
			Origin:  b.Origin,
			Logger:  logger,
		}, b.Dispatcher)
		if err != nil {
			_ = base.Close()
			return nil, fmt.Errorf("failed to connect change feed: %w", err)
		}
	}

	publisher := eventbus.Fanout{b.Dispatcher}
	if b.Bridge != nil {
		publisher = append(publisher, b.Bridge)
	}

	// The memory backend has no other writers to detect.
	if detector, ok := base.(storage.ChangeDetector); ok && backendName(db.Backend) != factory.BackendMemory && events.PollInterval > 0 {
		b.Poller = storage.NewPoller(detector, b.Dispatcher, events.PollInterval, logger)
	}

	b.Store = storage.WithEvents(telemetry.WrapStorage(base), publisher, b.Origin)
	b.Relay, b.Enhancer = selectEnhancer(logger)
	return b, nil
}

// selectEnhancer prefers a running relay endpoint, then an in-process relay
// when a webhook is configured. With neither, new tasks are not enhanced.
func selectEnhancer(logger *slog.Logger) (*enhance.Relay, board.Enhancer) {
	settings := config.Enhance()
	if settings.RelayURL != "" {
		return nil, enhance.NewClient(settings.RelayURL, &http.Client{Timeout: settings.Timeout})
	}
	if settings.WebhookURL == "" {
		return nil, nil
	}
	relay := newRelay(settings, logger)
	return relay, relay
}

func newRelay(settings config.EnhanceSettings, logger *slog.Logger) *enhance.Relay {
	return enhance.NewRelay(enhance.RelayConfig{
		WebhookURL:   settings.WebhookURL,
		DefaultEmail: settings.DefaultEmail,
		Timeout:      settings.Timeout,
		Logger:       logger,
	})
}

// Close stops the change feed and closes the store.
func (b *backend) Close() error {
	if b.Bridge != nil {
		b.Bridge.Close()
	}
	return b.Store.Close()
}

// Run delivers remote and externally detected changes until ctx is done.
func (b *backend) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if b.Bridge != nil {
		g.Go(func() error { return b.Bridge.Run(ctx) })
	}
	if b.Poller != nil {
		g.Go(func() error { return b.Poller.Run(ctx) })
	}
	return g.Wait()
}

func backendName(name string) string {
	if name == "" {
		return factory.BackendMemory
	}
	return name
}
