package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quillworks/taskboard/internal/board"
	"github.com/quillworks/taskboard/internal/config"
)

const clearScreen = "\033[H\033[2J"

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "tasks",
	Short:   "Show the task list and redraw it whenever it changes",
	Long: `Print the list, then print it again after every change made through this
process, over NATS (events.nats-url) or detected by polling the database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(rootCtx, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().StringP("email", "e", "", "Whose tasks (default from ui.default-email)")
	flagForKey(watchCmd, "email", config.KeyUIDefaultEmail)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, w io.Writer) error {
	be, err := openBackend(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = be.Close() }()

	b := board.New(be.Store, config.UI().DefaultEmail, board.WithLogger(logger))
	changes := b.Changes(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return be.Run(ctx) })
	g.Go(func() error { return b.Watch(ctx, be.Dispatcher) })
	g.Go(func() error {
		styled := renderer(w).Styled
		if err := b.Refresh(ctx); err != nil {
			// Keep watching; the next change may succeed.
			fmt.Fprintln(w, renderer(w).RenderFail(err.Error()))
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-changes:
				if !ok {
					return nil
				}
				if styled {
					fmt.Fprint(w, clearScreen)
				}
				if err := printBoard(w, b); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}
