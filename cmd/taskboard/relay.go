package main

import (
	"context"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/quillworks/taskboard/internal/config"
	"github.com/quillworks/taskboard/internal/enhance"
	"github.com/quillworks/taskboard/internal/ui"
)

var relayCmd = &cobra.Command{
	Use:     "relay",
	GroupID: "servers",
	Short:   "Run only the enhancement relay endpoint",
	Long: `Serve POST /api/enhance-task without a database. Requests are forwarded to
the automation webhook as {taskId, title, userEmail}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ln, err := net.Listen("tcp", config.UI().Addr)
		if err != nil {
			return err
		}
		return runRelay(rootCtx, ln)
	},
}

func init() {
	relayCmd.Flags().String("addr", "", "Listen address (default from ui.addr)")
	relayCmd.Flags().String("webhook-url", "", "Automation webhook URL (default from enhance.webhook-url)")
	relayCmd.Flags().Duration("timeout", 0, "Webhook call timeout, 0 for none (default from enhance.timeout)")
	flagForKey(relayCmd, "addr", config.KeyUIAddr)
	flagForKey(relayCmd, "webhook-url", config.KeyEnhanceWebhookURL)
	flagForKey(relayCmd, "timeout", config.KeyEnhanceTimeout)
	rootCmd.AddCommand(relayCmd)
}

func runRelay(ctx context.Context, ln net.Listener) error {
	settings := config.Enhance()
	if settings.WebhookURL == "" {
		logger.Warn("no webhook configured; every request will fail until enhance.webhook-url is set")
	}
	relay := newRelay(settings, logger)
	handler := ui.NewHandler(ui.HandlerConfig{
		Logger: logger,
		Register: func(mux *http.ServeMux) {
			mux.Handle(enhance.Path, relay.Handler())
		},
	})
	return ui.NewServer(ln.Addr().String(), handler, logger).Serve(ctx, ln)
}
