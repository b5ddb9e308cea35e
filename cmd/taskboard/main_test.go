package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/taskboard/internal/config"
	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/storage/factory"
	"github.com/quillworks/taskboard/internal/storage/memory"
)

// sharedStore outlives each command so consecutive invocations see the same
// tasks.
type sharedStore struct {
	storage.Storage
}

func (sharedStore) Close() error { return nil }

// useMemoryStore points every command at one in-memory store.
func useMemoryStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	prev := storeOpener
	storeOpener = func(ctx context.Context, backend string, opts factory.Options) (storage.Storage, error) {
		return sharedStore{store}, nil
	}
	t.Cleanup(func() { storeOpener = prev })
	return store
}

// isolateConfig keeps a developer's taskboard.yaml and environment out of
// the test.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	for _, k := range config.Keys {
		for _, env := range k.EnvVars {
			t.Setenv(env, "")
		}
	}
	t.Setenv("TASKBOARD_DATABASE_BACKEND", "memory")
	t.Setenv("TASKBOARD_POLL_INTERVAL", "0")
}

// resetFlags restores every flag to its default so values do not leak
// between Execute calls on the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command with args and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err != nil {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, "taskboard %v", args)
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// initConfigForTest loads configuration the way PersistentPreRunE does, for
// tests that call a run function directly.
func initConfigForTest(t *testing.T) {
	t.Helper()
	isolateConfig(t)
	require.NoError(t, config.Initialize())
	prev := logger
	logger = quietLogger()
	t.Cleanup(func() { logger = prev })
}
