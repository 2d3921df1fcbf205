// Package main provides the CLI entry point for the Drover agent runtime.
//
// Drover drives conversational turns against the Gemini API with local tool
// execution: file reads and edits, shell commands, and user-approved
// modifications, with checkpointing of restorable edits.
//
// # Basic Usage
//
// Start an interactive session:
//
//	drover chat --config drover.yaml
//
// Inspect the registered tools:
//
//	drover tools
//
// List stored sessions and checkpoints:
//
//	drover sessions
//	drover restore
//
// # Environment Variables
//
//   - GEMINI_API_KEY: API key for the Gemini backend
//   - DROVER_MODEL: Override the configured model id
//   - DROVER_APPROVAL_MODE: Override the approval mode (default, auto_edit, yolo)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kepvey/drover/internal/config"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "drover",
		Short:        "Drover - agent runtime for the Gemini API",
		Long:         "Drover runs conversational agent turns with local tool execution,\napproval gating, and checkpointed file edits.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	rootCmd.AddCommand(
		buildChatCmd(),
		buildToolsCmd(),
		buildSessionsCmd(),
		buildRestoreCmd(),
	)
	return rootCmd
}

// loadConfig reads the config file and installs the default logger it
// implies.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
