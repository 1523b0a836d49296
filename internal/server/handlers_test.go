package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/api"
)

type mockOrchestrator struct {
	lastRun     *api.RunRequest
	lastMessage *api.MessageRequest
	result      *api.RunResult
	err         error
}

func (m *mockOrchestrator) RunWorkflow(ctx context.Context, req *api.RunRequest) (*api.RunResult, error) {
	m.lastRun = req
	return m.result, m.err
}

func (m *mockOrchestrator) SendMessage(ctx context.Context, req *api.MessageRequest) (*api.RunResult, error) {
	m.lastMessage = req
	return m.result, m.err
}

type mockTaskHandler struct {
	api.TaskHandler
	cancelled string
	cancelErr error
}

func (m *mockTaskHandler) CancelTask(ctx context.Context, id string) (*api.Task, error) {
	m.cancelled = id
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	return &api.Task{ID: id, Status: api.TaskCancelled}, nil
}

type mockWorkflowHandler struct {
	api.WorkflowHandler
	created     *api.Workflow
	validateErr error
}

func (m *mockWorkflowHandler) CreateWorkflow(wf api.Workflow) error {
	m.created = &wf
	return nil
}

func (m *mockWorkflowHandler) ValidateWorkflow(wf api.Workflow) error {
	return m.validateErr
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return tc.Text
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	return out
}

func TestHandleSendMessage(t *testing.T) {
	orch := &mockOrchestrator{result: &api.RunResult{
		TaskID:   "task_1",
		Status:   api.TaskCompleted,
		Response: "done",
	}}
	api.RegisterOrchestrator(orch)
	defer api.RegisterOrchestrator(nil)

	s := New("test")
	result, err := s.handleSendMessage(context.Background(), callRequest(map[string]interface{}{
		"workflow": "chat",
		"message":  "hello",
		"source":   "slack",
		"chatId":   "C1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	require.NotNil(t, orch.lastMessage)
	assert.Equal(t, "chat", orch.lastMessage.WorkflowID)
	assert.Equal(t, "hello", orch.lastMessage.Message)
	assert.Equal(t, "slack", orch.lastMessage.Source)

	out := resultJSON(t, result)
	assert.Equal(t, "task_1", out["taskId"])
}

func TestHandleSendMessage_MissingArgs(t *testing.T) {
	s := New("test")
	result, err := s.handleSendMessage(context.Background(), callRequest(map[string]interface{}{
		"workflow": "chat",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCancelTask(t *testing.T) {
	th := &mockTaskHandler{}
	api.RegisterTask(th)
	defer api.RegisterTask(nil)

	s := New("test")
	result, err := s.handleCancelTask(context.Background(), callRequest(map[string]interface{}{
		"id": "task_9",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "task_9", th.cancelled)

	out := resultJSON(t, result)
	assert.Equal(t, string(api.TaskCancelled), out["status"])
}

func TestHandleCancelTask_TerminalTask(t *testing.T) {
	th := &mockTaskHandler{cancelErr: &api.TerminalTaskError{TaskID: "task_9", Status: api.TaskCompleted}}
	api.RegisterTask(th)
	defer api.RegisterTask(nil)

	s := New("test")
	result, err := s.handleCancelTask(context.Background(), callRequest(map[string]interface{}{
		"id": "task_9",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already finished")
}

func TestHandleCancelTask_StoreError(t *testing.T) {
	th := &mockTaskHandler{cancelErr: errors.New("disk gone")}
	api.RegisterTask(th)
	defer api.RegisterTask(nil)

	s := New("test")
	result, err := s.handleCancelTask(context.Background(), callRequest(map[string]interface{}{
		"id": "task_9",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Failed to cancel task")
}

func TestHandleCreateWorkflow(t *testing.T) {
	wh := &mockWorkflowHandler{}
	api.RegisterWorkflow(wh)
	defer api.RegisterWorkflow(nil)

	s := New("test")
	result, err := s.handleCreateWorkflow(context.Background(), callRequest(map[string]interface{}{
		"workflow": map[string]interface{}{
			"id":    "deploy",
			"title": "Deploy",
			"steps": []interface{}{
				map[string]interface{}{
					"name": "go",
					"action": map[string]interface{}{
						"type":     "template",
						"template": "done",
					},
				},
			},
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	require.NotNil(t, wh.created)
	assert.Equal(t, "deploy", wh.created.ID)
	require.Len(t, wh.created.Steps, 1)
	assert.Equal(t, api.ActionTemplate, wh.created.Steps[0].Action.Type)
}

func TestHandleCreateWorkflow_MissingDocument(t *testing.T) {
	s := New("test")
	result, err := s.handleCreateWorkflow(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleValidateWorkflow(t *testing.T) {
	wh := &mockWorkflowHandler{}
	api.RegisterWorkflow(wh)
	defer api.RegisterWorkflow(nil)

	s := New("test")
	doc := map[string]interface{}{"workflow": map[string]interface{}{"id": "x"}}

	result, err := s.handleValidateWorkflow(context.Background(), callRequest(doc))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["valid"])

	wh.validateErr = errors.New("steps: workflow must have at least one step")
	result, err = s.handleValidateWorkflow(context.Background(), callRequest(doc))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, false, out["valid"])
	assert.Contains(t, out["error"], "at least one step")
}

func TestHandleRouteEvents(t *testing.T) {
	orch := &mockOrchestrator{result: &api.RunResult{TaskID: "task_1", Status: api.TaskCompleted}}
	api.RegisterOrchestrator(orch)
	defer api.RegisterOrchestrator(nil)

	s := New("test")
	result, err := s.handleRouteEvents(context.Background(), callRequest(map[string]interface{}{
		"events": []interface{}{
			map[string]interface{}{"workflow": "ingest", "input": map[string]interface{}{"id": "1"}},
			map[string]interface{}{"input": map[string]interface{}{}},
			"not an object",
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := resultJSON(t, result)
	assert.Equal(t, float64(3), out["total"])
	results := out["results"].([]interface{})

	first := results[0].(map[string]interface{})
	assert.Equal(t, "task_1", first["taskId"])
	assert.Equal(t, string(api.TaskCompleted), first["status"])

	second := results[1].(map[string]interface{})
	assert.Contains(t, second["error"], "missing workflow")

	third := results[2].(map[string]interface{})
	assert.Contains(t, third["error"], "not an object")

	// the event source is stamped on the run
	assert.Equal(t, "event", orch.lastRun.Source)
}
