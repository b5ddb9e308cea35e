package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quillworks/taskboard/internal/config"
	"github.com/quillworks/taskboard/internal/enhancer"
	"github.com/quillworks/taskboard/internal/ui"
)

// WebhookPath is where the reference webhook accepts requests.
const WebhookPath = "/webhook/enhance-task"

var enhancerCmd = &cobra.Command{
	Use:     "enhancer",
	GroupID: "servers",
	Short:   "Run the reference automation webhook backed by Claude",
	Long: `Accept enhancement requests on POST /webhook/enhance-task, ask Claude for a
clearer title and store it as the task's enhanced title.

Point enhance.webhook-url at this server. Results are written to the database
unless enhancer.task-api-url names a taskboard server to PATCH instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ln, err := net.Listen("tcp", config.Enhancer().Addr)
		if err != nil {
			return err
		}
		return runEnhancer(rootCtx, ln)
	},
}

func init() {
	enhancerCmd.Flags().String("addr", "", "Listen address (default from enhancer.addr)")
	enhancerCmd.Flags().String("model", "", "Anthropic model (default from anthropic.model)")
	enhancerCmd.Flags().String("task-api", "", "Taskboard server to write results through (default from enhancer.task-api-url)")
	flagForKey(enhancerCmd, "addr", config.KeyEnhancerAddr)
	flagForKey(enhancerCmd, "model", config.KeyAnthropicModel)
	flagForKey(enhancerCmd, "task-api", config.KeyEnhancerTaskAPI)
	rootCmd.AddCommand(enhancerCmd)
}

// rewriterFactory builds the title rewriter. Tests replace it.
var rewriterFactory = func(settings config.EnhancerSettings) (enhancer.Rewriter, error) {
	return enhancer.NewAnthropicRewriter(settings.APIKey, settings.Model)
}

func runEnhancer(ctx context.Context, ln net.Listener) error {
	settings := config.Enhancer()
	rewriter, err := rewriterFactory(settings)
	if err != nil {
		_ = ln.Close()
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var writer enhancer.TaskWriter
	if settings.TaskAPIURL != "" {
		writer = enhancer.NewAPIWriter(settings.TaskAPIURL, &http.Client{Timeout: 30 * time.Second})
	} else {
		b, err := openBackend(ctx, logger)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer func() { _ = b.Close() }()
		writer = b.Store
		// Carries our writes to other processes over NATS.
		g.Go(func() error { return b.Run(ctx) })
	}

	receiver := enhancer.NewReceiver(enhancer.ReceiverConfig{
		Rewriter: rewriter,
		Writer:   writer,
		Logger:   logger,
	})
	handler := ui.NewHandler(ui.HandlerConfig{
		Logger: logger,
		Register: func(mux *http.ServeMux) {
			mux.Handle(WebhookPath, receiver)
		},
	})

	g.Go(func() error {
		err := ui.NewServer(ln.Addr().String(), handler, logger).Serve(ctx, ln)
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if waitErr := receiver.Wait(drainCtx); waitErr != nil {
			logger.Warn("abandoned in-flight enhancements", "error", waitErr)
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
