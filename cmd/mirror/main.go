// Package main provides the CLI entry point for the mirror client.
//
// mirror launches (or attaches to) a local backend agent server, consumes
// its event stream into an in-memory reconciliation store, and keeps a
// small durable subset (current session, layout positions, produced-files
// flags) in SQLite across restarts.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mirror",
		Short: "mirror - Local agent session mirror",
		Long: `mirror keeps a live local mirror of an agent backend session.

It launches the backend server (or attaches to a running one), consumes
its event stream, reconciles messages, parts, session status, and pending
approvals in memory, and persists the small durable subset across
restarts.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildStatusCmd(),
		buildSessionsCmd(),
	)

	return rootCmd
}
