package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillworks/taskboard/internal/board"
	"github.com/quillworks/taskboard/internal/config"
	"github.com/quillworks/taskboard/internal/types"
	"github.com/quillworks/taskboard/internal/ui"
)

// enhanceWait bounds how long "add" waits for the relay to accept the
// enhancement request before exiting.
var enhanceWait = 15 * time.Second

// withBoard opens the backend, loads the board for the configured email and
// runs fn against it.
func withBoard(cmd *cobra.Command, fn func(ctx context.Context, b *board.Board) error) error {
	ctx := cmd.Context()
	if rootCtx != nil {
		ctx = rootCtx
	}
	be, err := openBackend(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = be.Close() }()

	opts := []board.Option{board.WithLogger(logger)}
	if be.Enhancer != nil {
		opts = append(opts, board.WithEnhancer(be.Enhancer))
	}
	b := board.New(be.Store, config.UI().DefaultEmail, opts...)
	if err := b.Refresh(ctx); err != nil {
		return err
	}
	return fn(ctx, b)
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderer(w io.Writer) ui.TaskRenderer {
	return ui.TaskRenderer{Styled: ui.ShouldStyle(w)}
}

// printBoard writes the board's tasks in the selected output format.
func printBoard(w io.Writer, b *board.Board) error {
	tasks := b.Tasks()
	if jsonOutput {
		if tasks == nil {
			tasks = []*types.Task{}
		}
		return outputJSON(w, tasks)
	}
	return renderer(w).List(w, b.Email(), tasks)
}

// printTask writes one task after a change.
func printTask(w io.Writer, verb string, task *types.Task) error {
	if jsonOutput {
		return outputJSON(w, task)
	}
	if quietFlag {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s %s\n", verb, renderer(w).Task(task))
	return err
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: "tasks",
	Short:   "List tasks for an email, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBoard(cmd, func(ctx context.Context, b *board.Board) error {
			return printBoard(cmd.OutOrStdout(), b)
		})
	},
}

var addCmd = &cobra.Command{
	Use:     "add <title>...",
	GroupID: "tasks",
	Short:   "Add a task and request a clearer title for it",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBoard(cmd, func(ctx context.Context, b *board.Board) error {
			task, enh, err := b.Add(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := printTask(cmd.OutOrStdout(), "Added", task); err != nil {
				return err
			}
			if enh == nil {
				return nil
			}
			waitCtx, cancel := context.WithTimeout(ctx, enhanceWait)
			defer cancel()
			if err := enh.Wait(waitCtx); err != nil {
				// The task exists either way; only the enhancement is lost.
				logger.Warn("title enhancement not requested", "task_id", task.ID, "error", err)
			}
			return nil
		})
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id>",
	GroupID: "tasks",
	Short:   "Mark a task complete (or incomplete with --undo)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		undo, _ := cmd.Flags().GetBool("undo")
		return withBoard(cmd, func(ctx context.Context, b *board.Board) error {
			if err := b.Update(ctx, id, types.SetComplete(!undo)); err != nil {
				return err
			}
			return printChanged(ctx, cmd.OutOrStdout(), b, id, "Updated")
		})
	},
}

var toggleCmd = &cobra.Command{
	Use:     "toggle <id>",
	GroupID: "tasks",
	Short:   "Flip a task between complete and incomplete",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		return withBoard(cmd, func(ctx context.Context, b *board.Board) error {
			if err := b.Toggle(ctx, id); err != nil {
				return notOnBoard(err, id, b.Email())
			}
			return printChanged(ctx, cmd.OutOrStdout(), b, id, "Updated")
		})
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id> <title>...",
	GroupID: "tasks",
	Short:   "Replace a task's title, discarding any enhanced title",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		return withBoard(cmd, func(ctx context.Context, b *board.Board) error {
			if err := b.StartEdit(id); err != nil {
				return notOnBoard(err, id, b.Email())
			}
			b.SetEditText(strings.Join(args[1:], " "))
			if err := b.CommitEdit(ctx); err != nil {
				return err
			}
			return printChanged(ctx, cmd.OutOrStdout(), b, id, "Edited")
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	GroupID: "tasks",
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		return withBoard(cmd, func(ctx context.Context, b *board.Board) error {
			if err := b.Delete(ctx, id); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOutput {
				return outputJSON(w, map[string]any{"id": id, "deleted": true})
			}
			if !quietFlag {
				fmt.Fprintf(w, "Deleted #%d\n", id)
			}
			return nil
		})
	},
}

// printChanged refreshes the board and prints the task with the given id.
func printChanged(ctx context.Context, w io.Writer, b *board.Board, id int64, verb string) error {
	if err := b.Refresh(ctx); err != nil {
		return err
	}
	for _, t := range b.Tasks() {
		if t.ID == id {
			return printTask(w, verb, t)
		}
	}
	// Another partition's task: the write succeeded but it is not shown here.
	if !jsonOutput && !quietFlag {
		fmt.Fprintf(w, "%s #%d\n", verb, id)
	}
	return nil
}

func notOnBoard(err error, id int64, email string) error {
	if errors.Is(err, board.ErrUnknownTask) {
		return fmt.Errorf("task #%d is not on %s's board", id, email)
	}
	return err
}

func init() {
	for _, cmd := range []*cobra.Command{listCmd, addCmd, doneCmd, toggleCmd, editCmd, rmCmd} {
		cmd.Flags().StringP("email", "e", "", "Whose tasks (default from ui.default-email)")
		flagForKey(cmd, "email", config.KeyUIDefaultEmail)
		rootCmd.AddCommand(cmd)
	}
	doneCmd.Flags().Bool("undo", false, "Mark the task incomplete instead")
}
