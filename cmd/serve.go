package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/app"
	"loom/internal/server"
)

// serveCmd starts the engine and serves the command surface as MCP
// tools over stdio. The connected host drives workflows, messages and
// task operations through those tools; downstream tool providers are
// launched from the providers/ definitions in the config directory.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow engine's command surface over stdio (MCP)",
	Long: `Starts the engine and exposes its command surface as MCP tools on
stdin/stdout: start workflows, send conversational messages with thread
continuation, inspect and cancel tasks, manage workflow definitions and
route inbound event batches.

Configuration is read from the --config-path directory:
  config.yaml   engine tuning (iteration caps, thread TTL, sweep interval)
  workflows/    workflow definitions (hot-reloaded on change)
  providers/    downstream MCP tool providers (stdio subprocesses)
  tasks/        durable task records

Logs go to stderr; stdout carries the MCP transport.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(newAppConfig(false))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return err
	}
	defer application.Stop()

	return server.New(GetVersion()).Start(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
