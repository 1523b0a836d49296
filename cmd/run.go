package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/app"
)

var (
	runInputJSON string
	runArgs      []string
	runTTLMs     int64
)

// runCmd executes one workflow synchronously and prints its terminal
// result as JSON. llm steps require an embedding host and fail here;
// tool, code and template workflows run against the configured
// provider mesh.
var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run a workflow and print its result",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	input, err := parseRunInput()
	if err != nil {
		return err
	}

	application, err := app.NewApplication(newAppConfig(quietByDefault()))
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

	result, err := api.GetOrchestrator().RunWorkflow(ctx, &api.RunRequest{
		WorkflowID: args[0],
		Input:      input,
		Source:     "cli",
		TTLMs:      runTTLMs,
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if result.Status == api.TaskFailed {
		return fmt.Errorf("workflow failed: %s", result.Error)
	}
	return nil
}

// parseRunInput merges --input JSON with --arg key=value pairs, the
// pairs winning.
func parseRunInput() (map[string]interface{}, error) {
	input := make(map[string]interface{})

	if runInputJSON != "" {
		if err := json.Unmarshal([]byte(runInputJSON), &input); err != nil {
			return nil, fmt.Errorf("invalid --input JSON: %w", err)
		}
	}

	for _, pair := range runArgs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, expected key=value", pair)
		}
		input[key] = value
	}
	return input, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runInputJSON, "input", "", "Workflow input as a JSON object")
	runCmd.Flags().StringArrayVar(&runArgs, "arg", nil, "Workflow input as key=value (repeatable, overrides --input)")
	runCmd.Flags().Int64Var(&runTTLMs, "ttl", 0, "Task time-to-live in milliseconds (0 = no expiry)")
}
