// commands.go contains all cobra command definitions and their flag
// configurations. Each command builder creates a command and wires it to
// its handler.
package main

import (
	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		attach     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the backend and mirror its event stream",
		Long: `Launch the backend agent server and mirror its event stream.

The client will:
1. Load configuration (or defaults when no file is given)
2. Open the durable store and restore the persisted subset
3. Launch the backend server on a free port (unless --attach is given)
4. Connect to the event stream and reconcile events into the store
5. Watch session workspaces for produced files

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Launch the backend and mirror it
  mirror run

  # Attach to an already-running backend
  mirror run --attach http://127.0.0.1:4096

  # Run with a config file and debug logging
  mirror run --config ~/.mirror/config.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), configPath, attach, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML or JSON5)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().StringVar(&attach, "attach", "", "Attach to a running backend at this base URL instead of launching one")

	return cmd
}

func buildStatusCmd() *cobra.Command {
	var (
		configPath string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend and durable-state status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, configPath, baseURL)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML or JSON5)")
	cmd.Flags().StringVar(&baseURL, "backend", "", "Backend base URL to query (skips launch)")

	return cmd
}

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage local session workspaces",
	}
	cmd.AddCommand(
		buildSessionsListCmd(),
		buildSessionsFavoriteCmd(),
		buildSessionsDeleteCmd(),
	)
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List session workspaces in the local catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML or JSON5)")
	return cmd
}

func buildSessionsFavoriteCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "favorite <session-id>",
		Short: "Toggle a session's favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsFavorite(cmd, configPath, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML or JSON5)")
	return cmd
}

func buildSessionsDeleteCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session workspace and its catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd, configPath, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (YAML or JSON5)")
	return cmd
}
