package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quillworks/taskboard/internal/config"
	"github.com/quillworks/taskboard/internal/enhance"
	"github.com/quillworks/taskboard/internal/ui"
	"github.com/quillworks/taskboard/internal/ui/api"
)

// EventsPath serves the raw change feed as server-sent events.
const EventsPath = "/api/events"

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "servers",
	Short:   "Run the web board, task API and enhancement relay",
	Long: `Serve the task board in the browser along with:

  /api/tasks          JSON task API
  /api/events         change notifications as server-sent events
  /api/enhance-task   relay to the automation webhook
  /healthz            liveness probe`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ln, err := net.Listen("tcp", config.UI().Addr)
		if err != nil {
			return err
		}
		return runServe(rootCtx, ln)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from ui.addr)")
	serveCmd.Flags().String("webhook-url", "", "Automation webhook URL (default from enhance.webhook-url)")
	flagForKey(serveCmd, "addr", config.KeyUIAddr)
	flagForKey(serveCmd, "webhook-url", config.KeyEnhanceWebhookURL)
	rootCmd.AddCommand(serveCmd)
}

// runServe serves on ln until ctx is cancelled.
func runServe(ctx context.Context, ln net.Listener) error {
	b, err := openBackend(ctx, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() { _ = b.Close() }()

	uiSettings := config.UI()
	// This process is the relay; enhance.relay-url is for other processes.
	relay := b.Relay
	if relay == nil {
		relay = newRelay(config.Enhance(), logger)
	}
	sessions := ui.NewSessionManager(ui.SessionConfig{
		Store:        b.Store,
		Source:       b.Dispatcher,
		Enhancer:     relay,
		DefaultEmail: uiSettings.DefaultEmail,
		TTL:          uiSettings.SessionTTL,
		Logger:       logger,
	})
	web := ui.NewWeb(ui.WebConfig{Sessions: sessions, Logger: logger})

	handler := ui.NewHandler(ui.HandlerConfig{
		Logger: logger,
		Register: func(mux *http.ServeMux) {
			web.Register(mux)
			api.Register(mux, b.Store,
				api.WithDefaultEmail(uiSettings.DefaultEmail),
				api.WithLogger(logger),
			)
			mux.Handle(EventsPath, api.NewEventStreamHandler(b.Dispatcher))
			mux.Handle(enhance.Path, relay.Handler())
		},
	})
	server := ui.NewServer(ln.Addr().String(), handler, logger)

	logger.Info("taskboard serving",
		"url", fmt.Sprintf("http://%s/", ln.Addr()),
		"backend", backendName(config.Database().Backend),
		"webhook", config.Enhance().WebhookURL != "",
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(ctx, ln) })
	g.Go(func() error { return sessions.Run(ctx) })
	g.Go(func() error { return b.Run(ctx) })
	return g.Wait()
}
