package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quillworks/taskboard/internal/config"
	"github.com/quillworks/taskboard/internal/telemetry"
)

// configKeyAnnotation marks a flag that overrides a configuration key.
const configKeyAnnotation = "taskboard/config-key"

var (
	configPath  string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "taskboard - a shared task list with live sync and title enhancement",
	Long: `A task list kept in a relational database. The web page and the CLI both
re-read the list whenever any client changes it, and new tasks are sent to an
automation webhook that can rewrite their titles.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupSignalContext()
		setupLogger(cmd.ErrOrStderr())

		if err := loadConfig(); err != nil {
			return err
		}
		if err := bindConfigFlags(cmd); err != nil {
			return err
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if err := telemetry.Init(rootCtx, "taskboard", Version); err != nil {
			logger.Warn("telemetry disabled", "error", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(context.Background())
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./taskboard.yaml or $XDG_CONFIG_HOME/taskboard/taskboard.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.AddGroup(&cobra.Group{ID: "tasks", Title: "Working With Tasks:"})
	rootCmd.AddGroup(&cobra.Group{ID: "servers", Title: "Servers:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

func setupSignalContext() {
	if rootCtx != nil && rootCtx.Err() == nil {
		return
	}
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func setupLogger(w io.Writer) {
	level := slog.LevelInfo
	switch {
	case verboseFlag:
		level = slog.LevelDebug
	case quietFlag:
		level = slog.LevelError
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func loadConfig() error {
	if configPath != "" {
		return config.InitializeFromFile(configPath)
	}
	return config.Initialize()
}

// bindConfigFlags lets every flag annotated with a config key override it.
func bindConfigFlags(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if bindErr != nil || len(keys) == 0 {
			return
		}
		bindErr = config.BindFlag(keys[0], f)
	})
	return bindErr
}

// flagForKey registers the config key a flag overrides.
func flagForKey(cmd *cobra.Command, flag, key string) {
	_ = cmd.Flags().SetAnnotation(flag, configKeyAnnotation, []string{key})
}

func main() {
	rootCmd.InitDefaultHelpCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
