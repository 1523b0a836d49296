package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/app"
)

var (
	listTasksWorkflow string
	listTasksStatus   string
	listTasksLimit    int
	listTasksOffset   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows or tasks",
}

var listWorkflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List workflow definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context) error {
			workflows := api.GetWorkflow().ListWorkflows()

			t := newTable(cmd)
			t.AppendHeader(table.Row{"ID", "TITLE", "STEPS", "DESCRIPTION"})
			for _, wf := range workflows {
				t.AppendRow(table.Row{wf.ID, wf.Title, len(wf.Steps), truncate(wf.Description, 60)})
			}
			t.Render()
			return nil
		})
	},
}

var listTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List task records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context) error {
			resp, err := api.GetTask().ListTasks(ctx, &api.ListTasksRequest{
				WorkflowID: listTasksWorkflow,
				Status:     api.TaskStatus(listTasksStatus),
				Limit:      listTasksLimit,
				Offset:     listTasksOffset,
			})
			if err != nil {
				return err
			}

			t := newTable(cmd)
			t.AppendHeader(table.Row{"ID", "WORKFLOW", "STATUS", "UPDATED", "ERROR"})
			for _, task := range resp.Tasks {
				t.AppendRow(table.Row{
					task.ID,
					task.WorkflowID,
					task.Status,
					task.LastUpdatedAt.Format(time.RFC3339),
					truncate(task.Error, 40),
				})
			}
			t.Render()

			if resp.HasMore {
				fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d tasks (use --offset %d for more)\n",
					len(resp.Tasks), resp.Total, resp.Offset+len(resp.Tasks))
			}
			return nil
		})
	},
}

// withEngine bootstraps the engine silently, runs fn and tears the
// engine down again.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context) error) error {
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

	return fn(ctx)
}

func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	return t
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listWorkflowsCmd)
	listCmd.AddCommand(listTasksCmd)

	listTasksCmd.Flags().StringVar(&listTasksWorkflow, "workflow", "", "Filter by workflow id")
	listTasksCmd.Flags().StringVar(&listTasksStatus, "status", "", "Filter by status (working, completed, failed, cancelled)")
	listTasksCmd.Flags().IntVar(&listTasksLimit, "limit", 20, "Maximum number of tasks to show")
	listTasksCmd.Flags().IntVar(&listTasksOffset, "offset", 0, "Number of tasks to skip")
}
