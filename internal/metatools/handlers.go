package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"loom/internal/api"
	"loom/pkg/logging"
)

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...))
}

// jsonResult serializes v as an indented JSON text result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Failed to serialize result: %v", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func objectArg(args map[string]interface{}, key string) map[string]interface{} {
	m, _ := args[key].(map[string]interface{})
	return m
}

// handleListWorkflows returns id, title and description for every
// workflow definition.
func (p *Provider) handleListWorkflows(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	handler := api.GetWorkflow()
	if handler == nil {
		return errorResult("Workflow handler not available"), nil
	}

	workflows := handler.ListWorkflows()
	type entry struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
	}
	entries := make([]entry, 0, len(workflows))
	for _, wf := range workflows {
		entries = append(entries, entry{ID: wf.ID, Title: wf.Title, Description: wf.Description})
	}
	return jsonResult(map[string]interface{}{"workflows": entries, "total": len(entries)})
}

// handleStartWorkflow runs a workflow synchronously and returns its
// terminal result including the task id.
func (p *Provider) handleStartWorkflow(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	workflowID := stringArg(args, "workflow")
	if workflowID == "" {
		return errorResult("workflow argument is required"), nil
	}

	handler := api.GetOrchestrator()
	if handler == nil {
		return errorResult("Orchestrator handler not available"), nil
	}

	logging.Debug("MetaTools", "Starting workflow %s", workflowID)
	result, err := handler.RunWorkflow(ctx, &api.RunRequest{
		WorkflowID: workflowID,
		Input:      objectArg(args, "input"),
		Source:     "agent",
	})
	if err != nil {
		return errorResult("Failed to run workflow %s: %v", workflowID, err), nil
	}
	return jsonResult(result)
}

// handleListTools returns name, description and origin of every catalog
// tool.
func (p *Provider) handleListTools(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	handler := api.GetToolCatalog()
	if handler == nil {
		return errorResult("Tool catalog handler not available"), nil
	}

	descriptors, err := handler.ListTools(ctx)
	if err != nil {
		return errorResult("Failed to list tools: %v", err), nil
	}

	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Provider    string `json:"provider,omitempty"`
		Local       bool   `json:"local,omitempty"`
	}
	entries := make([]entry, 0, len(descriptors))
	for _, d := range descriptors {
		entries = append(entries, entry{
			Name:        d.Tool.Name,
			Description: d.Tool.Description,
			Provider:    d.ProviderID,
			Local:       d.Local,
		})
	}
	return jsonResult(map[string]interface{}{"tools": entries, "total": len(entries)})
}

// handleCallTool invokes an arbitrary catalog tool and passes its
// result through unchanged.
func (p *Provider) handleCallTool(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	name := stringArg(args, "name")
	if name == "" {
		return errorResult("name argument is required"), nil
	}

	handler := api.GetToolCatalog()
	if handler == nil {
		return errorResult("Tool catalog handler not available"), nil
	}

	result, err := handler.CallToolByName(ctx, name, objectArg(args, "args"))
	if err != nil {
		return errorResult("Failed to call tool %s: %v", name, err), nil
	}
	return result, nil
}

func (p *Provider) handleListTasks(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	handler := api.GetTask()
	if handler == nil {
		return errorResult("Task handler not available"), nil
	}

	req := &api.ListTasksRequest{
		WorkflowID: stringArg(args, "workflow"),
		Status:     api.TaskStatus(stringArg(args, "status")),
	}
	if limit, ok := args["limit"].(float64); ok {
		req.Limit = int(limit)
	}

	resp, err := handler.ListTasks(ctx, req)
	if err != nil {
		return errorResult("Failed to list tasks: %v", err), nil
	}
	return jsonResult(resp)
}

func (p *Provider) handleCheckTask(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	id := stringArg(args, "id")
	if id == "" {
		return errorResult("id argument is required"), nil
	}

	handler := api.GetTask()
	if handler == nil {
		return errorResult("Task handler not available"), nil
	}

	t, err := handler.GetTask(ctx, id)
	if err != nil {
		return errorResult("Failed to get task %s: %v", id, err), nil
	}
	return jsonResult(t)
}

func (p *Provider) handleDeleteTask(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	id := stringArg(args, "id")
	if id == "" {
		return errorResult("id argument is required"), nil
	}

	handler := api.GetTask()
	if handler == nil {
		return errorResult("Task handler not available"), nil
	}

	if err := handler.DeleteTask(ctx, id); err != nil {
		return errorResult("Failed to delete task %s: %v", id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %s deleted", id)), nil
}

func (p *Provider) handleCloseThread(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	source := stringArg(args, "source")
	chatID := stringArg(args, "chatId")
	if source == "" || chatID == "" {
		return errorResult("source and chatId arguments are required"), nil
	}

	handler := api.GetThread()
	if handler == nil {
		return errorResult("Thread handler not available"), nil
	}

	closed, err := handler.CloseThread(ctx, source, chatID)
	if err != nil {
		return errorResult("Failed to close thread: %v", err), nil
	}
	if !closed {
		return mcp.NewToolResultText("No open thread found for this conversation"), nil
	}
	return mcp.NewToolResultText("Thread closed; the next message starts a fresh task"), nil
}
