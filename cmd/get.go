package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"loom/internal/api"
)

var getOutputFormat string

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show a workflow definition or a task record",
}

var getWorkflowCmd = &cobra.Command{
	Use:   "workflow <id>",
	Short: "Show one workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context) error {
			wf, err := api.GetWorkflow().GetWorkflow(args[0])
			if err != nil {
				return err
			}
			return printEntity(cmd, wf)
		})
	},
}

var getTaskCmd = &cobra.Command{
	Use:   "task <id>",
	Short: "Show one task record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context) error {
			task, err := api.GetTask().GetTask(ctx, args[0])
			if err != nil {
				return err
			}
			return printEntity(cmd, task)
		})
	},
}

func printEntity(cmd *cobra.Command, v interface{}) error {
	switch getOutputFormat {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", getOutputFormat)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.AddCommand(getWorkflowCmd)
	getCmd.AddCommand(getTaskCmd)

	getCmd.PersistentFlags().StringVarP(&getOutputFormat, "output", "o", "yaml", "Output format (yaml or json)")
}
