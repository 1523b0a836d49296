package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/api"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a running task",
	Long: `Cancel flips a non-terminal task to cancelled. Cancellation is
cooperative: the orchestrator stops before dispatching the next level,
but in-flight external calls are not aborted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context) error {
			task, err := api.GetTask().CancelTask(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", task.ID, task.Status)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
