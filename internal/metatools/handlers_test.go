package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/api"
)

type mockWorkflowHandler struct {
	api.WorkflowHandler
	workflows []api.Workflow
}

func (m *mockWorkflowHandler) ListWorkflows() []api.Workflow {
	return m.workflows
}

type mockOrchestrator struct {
	lastReq *api.RunRequest
	result  *api.RunResult
}

func (m *mockOrchestrator) RunWorkflow(ctx context.Context, req *api.RunRequest) (*api.RunResult, error) {
	m.lastReq = req
	return m.result, nil
}

func (m *mockOrchestrator) SendMessage(ctx context.Context, req *api.MessageRequest) (*api.RunResult, error) {
	return m.result, nil
}

type mockThreadHandler struct {
	closed bool
}

func (m *mockThreadHandler) FindContinuableThread(ctx context.Context, source, chatID string) (*api.Task, error) {
	return nil, nil
}

func (m *mockThreadHandler) CloseThread(ctx context.Context, source, chatID string) (bool, error) {
	return m.closed, nil
}

func toolByName(t *testing.T, p *Provider, name string) api.LocalTool {
	t.Helper()
	for _, tool := range p.Tools() {
		if tool.Tool.Name == name {
			return tool
		}
	}
	t.Fatalf("meta-tool %s not found", name)
	return api.LocalTool{}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &parsed))
	return parsed
}

func TestProvider_ToolSet(t *testing.T) {
	p := NewProvider()

	var names []string
	for _, tool := range p.Tools() {
		names = append(names, tool.Tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"list_workflows", "start_workflow", "list_tools", "call_tool",
		"list_tasks", "check_task", "delete_task", "close_thread",
	}, names)
}

func TestHandleListWorkflows(t *testing.T) {
	api.RegisterWorkflow(&mockWorkflowHandler{workflows: []api.Workflow{
		{ID: "triage", Title: "Issue triage"},
		{ID: "deploy", Title: "Deploy service"},
	}})
	defer api.RegisterWorkflow(nil)

	result, err := toolByName(t, NewProvider(), "list_workflows").Handler(context.Background(), nil)
	require.NoError(t, err)

	parsed := resultJSON(t, result)
	assert.Equal(t, float64(2), parsed["total"])
}

func TestHandleStartWorkflow(t *testing.T) {
	orch := &mockOrchestrator{result: &api.RunResult{
		TaskID: "task_20260829_100000_abc123",
		Status: api.TaskCompleted,
	}}
	api.RegisterOrchestrator(orch)
	defer api.RegisterOrchestrator(nil)

	result, err := toolByName(t, NewProvider(), "start_workflow").Handler(context.Background(), map[string]interface{}{
		"workflow": "triage",
		"input":    map[string]interface{}{"issue": float64(7)},
	})
	require.NoError(t, err)

	parsed := resultJSON(t, result)
	assert.Equal(t, "task_20260829_100000_abc123", parsed["taskId"])
	require.NotNil(t, orch.lastReq)
	assert.Equal(t, "triage", orch.lastReq.WorkflowID)
	assert.Equal(t, "agent", orch.lastReq.Source)
}

func TestHandleStartWorkflow_MissingArg(t *testing.T) {
	result, err := toolByName(t, NewProvider(), "start_workflow").Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCloseThread(t *testing.T) {
	api.RegisterThread(&mockThreadHandler{closed: true})
	defer api.RegisterThread(nil)

	result, err := toolByName(t, NewProvider(), "close_thread").Handler(context.Background(), map[string]interface{}{
		"source": "slack",
		"chatId": "C1",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text, _ := mcp.AsTextContent(result.Content[0])
	assert.Contains(t, text.Text, "Thread closed")
}

func TestHandleCloseThread_NothingOpen(t *testing.T) {
	api.RegisterThread(&mockThreadHandler{closed: false})
	defer api.RegisterThread(nil)

	result, err := toolByName(t, NewProvider(), "close_thread").Handler(context.Background(), map[string]interface{}{
		"source": "slack",
		"chatId": "C1",
	})
	require.NoError(t, err)
	text, _ := mcp.AsTextContent(result.Content[0])
	assert.Contains(t, text.Text, "No open thread")
}

func TestHandlerUnavailable(t *testing.T) {
	api.RegisterOrchestrator(nil)

	result, err := toolByName(t, NewProvider(), "start_workflow").Handler(context.Background(), map[string]interface{}{
		"workflow": "triage",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
