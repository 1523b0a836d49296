package server

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

// decodeWorkflow converts the "workflow" object argument into a typed
// definition by round-tripping through JSON.
func decodeWorkflow(args map[string]interface{}) (*api.Workflow, error) {
	obj := objectArg(args, "workflow")
	if obj == nil {
		return nil, fmt.Errorf("workflow argument is required")
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow document: %w", err)
	}
	var wf api.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("invalid workflow document: %w", err)
	}
	return &wf, nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	workflowID := stringArg(args, "workflow")
	message := stringArg(args, "message")
	source := stringArg(args, "source")
	chatID := stringArg(args, "chatId")
	if workflowID == "" || message == "" || source == "" || chatID == "" {
		return errorResult("workflow, message, source and chatId arguments are required"), nil
	}

	handler := api.GetOrchestrator()
	if handler == nil {
		return errorResult("Orchestrator handler not available"), nil
	}

	result, err := handler.SendMessage(ctx, &api.MessageRequest{
		WorkflowID: workflowID,
		Message:    message,
		Source:     source,
		ChatID:     chatID,
		Input:      objectArg(args, "input"),
	})
	if err != nil {
		return errorResult("Failed to send message: %v", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleCancelTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(request.GetArguments(), "id")
	if id == "" {
		return errorResult("id argument is required"), nil
	}

	handler := api.GetTask()
	if handler == nil {
		return errorResult("Task handler not available"), nil
	}

	t, err := handler.CancelTask(ctx, id)
	if err != nil {
		if api.IsTerminalTask(err) {
			return errorResult("Task %s has already finished: %v", id, err), nil
		}
		return errorResult("Failed to cancel task %s: %v", id, err), nil
	}
	return jsonResult(t)
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(request.GetArguments(), "id")
	if id == "" {
		return errorResult("id argument is required"), nil
	}

	handler := api.GetWorkflow()
	if handler == nil {
		return errorResult("Workflow handler not available"), nil
	}

	wf, err := handler.GetWorkflow(id)
	if err != nil {
		return errorResult("Failed to get workflow %s: %v", id, err), nil
	}
	return jsonResult(wf)
}

func (s *Server) handleCreateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wf, err := decodeWorkflow(request.GetArguments())
	if err != nil {
		return errorResult("%v", err), nil
	}

	handler := api.GetWorkflow()
	if handler == nil {
		return errorResult("Workflow handler not available"), nil
	}

	if err := handler.CreateWorkflow(*wf); err != nil {
		return errorResult("Failed to create workflow: %v", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Workflow %s created", wf.ID)), nil
}

func (s *Server) handleValidateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wf, err := decodeWorkflow(request.GetArguments())
	if err != nil {
		return errorResult("%v", err), nil
	}

	handler := api.GetWorkflow()
	if handler == nil {
		return errorResult("Workflow handler not available"), nil
	}

	if err := handler.ValidateWorkflow(*wf); err != nil {
		return jsonResult(map[string]interface{}{"valid": false, "error": err.Error()})
	}
	return jsonResult(map[string]interface{}{"valid": true})
}

func (s *Server) handleDeleteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(request.GetArguments(), "id")
	if id == "" {
		return errorResult("id argument is required"), nil
	}

	handler := api.GetWorkflow()
	if handler == nil {
		return errorResult("Workflow handler not available"), nil
	}

	if err := handler.DeleteWorkflow(id); err != nil {
		return errorResult("Failed to delete workflow %s: %v", id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Workflow %s deleted", id)), nil
}

// handleRouteEvents starts the named workflow for each event in the
// batch. Events are independent: one failing run never blocks the rest,
// and the per-event outcome is reported in order.
func (s *Server) handleRouteEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, ok := request.GetArguments()["events"].([]interface{})
	if !ok {
		return errorResult("events argument must be an array"), nil
	}

	handler := api.GetOrchestrator()
	if handler == nil {
		return errorResult("Orchestrator handler not available"), nil
	}

	type outcome struct {
		Workflow string `json:"workflow,omitempty"`
		TaskID   string `json:"taskId,omitempty"`
		Status   string `json:"status,omitempty"`
		Error    string `json:"error,omitempty"`
	}

	outcomes := make([]outcome, 0, len(events))
	for i, raw := range events {
		event, ok := raw.(map[string]interface{})
		if !ok {
			outcomes = append(outcomes, outcome{Error: fmt.Sprintf("events[%d] is not an object", i)})
			continue
		}
		workflowID := stringArg(event, "workflow")
		if workflowID == "" {
			outcomes = append(outcomes, outcome{Error: fmt.Sprintf("events[%d] missing workflow", i)})
			continue
		}

		result, err := handler.RunWorkflow(ctx, &api.RunRequest{
			WorkflowID: workflowID,
			Input:      objectArg(event, "input"),
			Source:     "event",
		})
		if err != nil {
			logging.Warn("Server", "Event %d failed to start workflow %s: %v", i, workflowID, err)
			outcomes = append(outcomes, outcome{Workflow: workflowID, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, outcome{
			Workflow: workflowID,
			TaskID:   result.TaskID,
			Status:   string(result.Status),
			Error:    result.Error,
		})
	}

	return jsonResult(map[string]interface{}{"results": outcomes, "total": len(outcomes)})
}
