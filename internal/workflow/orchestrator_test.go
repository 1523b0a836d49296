package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/agent"
	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/mesh"
	"loom/internal/task"
	"loom/internal/thread"
)

// echoLLM answers with a response that embeds the prompt it saw, so
// tests can assert on resolved references reaching the model.
type echoLLM struct {
	prompts []string
}

func (e *echoLLM) Generate(ctx context.Context, model api.ModelTier, messages []api.ChatMessage, tools []mcp.Tool) (*api.LLMResponse, error) {
	prompt := messages[len(messages)-1].Content
	e.prompts = append(e.prompts, prompt)
	return &api.LLMResponse{Text: `{"response": "assessed: ` + prompt + `"}`}, nil
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	manager      *Manager
	store        task.Store
	caller       *fakeCaller
	llm          *echoLLM
}

func newFixture(t *testing.T, workflows ...api.Workflow) *orchestratorFixture {
	t.Helper()

	caller := &fakeCaller{}
	llm := &echoLLM{}
	lister := &fakeLister{tools: []mcp.Tool{mcp.NewTool("fetch_data"), mcp.NewTool("send_report")}}
	catalog := mesh.NewCatalog(lister, caller, time.Minute)
	loop := agent.NewLoop(llm, catalog, nil, config.EngineConfig{})
	dispatcher := NewDispatcher(catalog, caller, loop)

	manager := NewManager(t.TempDir(), "", nil)
	for _, wf := range workflows {
		require.NoError(t, manager.CreateWorkflow(wf))
	}

	store := task.NewFileStore(t.TempDir())
	threads := thread.NewManager(store, nil, 30*time.Minute, 10)

	return &orchestratorFixture{
		orchestrator: NewOrchestrator(manager, dispatcher, catalog, store, threads, nil, config.EngineConfig{}),
		manager:      manager,
		store:        store,
		caller:       caller,
		llm:          llm,
	}
}

func twoStepWorkflow() api.Workflow {
	return api.Workflow{
		ID:    "triage",
		Title: "Issue triage",
		Steps: []api.Step{
			{
				Name:   "a",
				Action: api.Action{Type: api.ActionTool, Tool: "fetch_data"},
			},
			{
				Name:   "b",
				Action: api.Action{Type: api.ActionLLM, Prompt: "assess @a.value"},
			},
		},
	}
}

func TestRunWorkflow_LevelsAndDataFlow(t *testing.T) {
	f := newFixture(t, twoStepWorkflow())

	result, err := f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{WorkflowID: "triage"})
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, result.Status)

	// b ran after a and observed a's committed output
	require.Len(t, f.llm.prompts, 1)
	assert.Equal(t, "assess committed", f.llm.prompts[0])

	// the final output carries the llm step's fields plus the task id
	out, ok := result.Output.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, result.TaskID, out["taskId"])
	assert.Equal(t, "assessed: assess committed", out["response"])
	assert.Equal(t, "assessed: assess committed", result.Response)

	// the durable record reached completed with both step results
	stored, err := f.store.Get(context.Background(), result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, stored.Status)
	require.Len(t, stored.StepResults, 2)
	assert.Equal(t, api.StepCompleted, stored.StepResults[0].Status)
	assert.Equal(t, api.StepCompleted, stored.StepResults[1].Status)
	assert.NotNil(t, stored.Result)
}

func TestRunWorkflow_UnknownWorkflow(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{WorkflowID: "ghost"})
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestRunWorkflow_StepErrorFailsTask(t *testing.T) {
	wf := api.Workflow{
		ID:    "broken",
		Title: "Broken",
		Steps: []api.Step{{
			Name:   "boom",
			Action: api.Action{Type: api.ActionCode, Transform: "count"},
			Input:  map[string]interface{}{"list": "not a list"},
		}},
	}
	f := newFixture(t, wf)

	result, err := f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{WorkflowID: "broken"})
	require.NoError(t, err)
	assert.Equal(t, api.TaskFailed, result.Status)
	assert.Contains(t, result.Error, "step boom")
	assert.NotEmpty(t, result.Response, "failure still carries a conversational response")

	stored, err := f.store.Get(context.Background(), result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, api.TaskFailed, stored.Status)
	assert.Equal(t, api.StepFailed, stored.StepResults[0].Status)
}

func TestRunWorkflow_ContinueOnError(t *testing.T) {
	wf := api.Workflow{
		ID:    "resilient",
		Title: "Resilient",
		Steps: []api.Step{
			{
				Name:   "optional",
				Action: api.Action{Type: api.ActionCode, Transform: "count"},
				Input:  map[string]interface{}{"list": "not a list"},
				Config: api.StepConfig{ContinueOnError: true},
			},
			{
				Name:   "report",
				Action: api.Action{Type: api.ActionTemplate, Template: "done"},
			},
		},
	}
	f := newFixture(t, wf)

	result, err := f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{WorkflowID: "resilient"})
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, result.Status)
	assert.Equal(t, "done", result.Output)
}

func TestRunWorkflow_SkippedStepLeavesNoOutput(t *testing.T) {
	wf := api.Workflow{
		ID:    "conditional",
		Title: "Conditional",
		Steps: []api.Step{
			{
				Name:   "notify",
				Action: api.Action{Type: api.ActionTemplate, Template: "notified"},
				Config: api.StepConfig{SkipIf: "empty:@findings"},
			},
			{
				Name:   "wrap",
				Action: api.Action{Type: api.ActionTemplate, Template: "result: @notify"},
			},
		},
	}
	f := newFixture(t, wf)

	result, err := f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{WorkflowID: "conditional"})
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, result.Status)

	// the skipped step occupies no output key, so the downstream
	// reference surfaces as literal text instead of throwing
	assert.Equal(t, "result: @notify", result.Output)

	stored, err := f.store.Get(context.Background(), result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, api.StepSkipped, stored.StepResults[0].Status)
}

func TestRunWorkflow_ArgDefaultsAndRequired(t *testing.T) {
	wf := api.Workflow{
		ID:    "greeter",
		Title: "Greeter",
		Args: map[string]api.ArgDefinition{
			"name":     {Type: "string", Required: true},
			"greeting": {Type: "string", Default: "hello"},
		},
		Steps: []api.Step{{
			Name:   "greet",
			Action: api.Action{Type: api.ActionTemplate, Template: "@greeting, @name"},
		}},
	}
	f := newFixture(t, wf)

	// missing required arg fails before any task is created
	_, err := f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{WorkflowID: "greeter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required arg")

	result, err := f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{
		WorkflowID: "greeter",
		Input:      map[string]interface{}{"name": "ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello, ada", result.Output)

	// wrong arg type is rejected
	_, err = f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{
		WorkflowID: "greeter",
		Input:      map[string]interface{}{"name": float64(7)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a string")
}

func TestRunWorkflow_DefaultInputMergedUnderCaller(t *testing.T) {
	wf := api.Workflow{
		ID:           "defaults",
		Title:        "Defaults",
		DefaultInput: map[string]interface{}{"env": "prod", "region": "eu"},
		Steps: []api.Step{{
			Name:   "show",
			Action: api.Action{Type: api.ActionTemplate, Template: "@env/@region"},
		}},
	}
	f := newFixture(t, wf)

	result, err := f.orchestrator.RunWorkflow(context.Background(), &api.RunRequest{
		WorkflowID: "defaults",
		Input:      map[string]interface{}{"region": "us"},
	})
	require.NoError(t, err)
	assert.Equal(t, "prod/us", result.Output)
}

func TestRunWorkflow_CancelledBetweenLevels(t *testing.T) {
	f := newFixture(t, twoStepWorkflow())
	ctx := context.Background()
	adapter := task.NewAdapter(f.store)

	// cancel the task from inside the first step's tool call; the
	// cancellation check between levels must then stop step b
	hooked := &hookedCaller{inner: f.caller, hook: func() {
		page, err := f.store.List(ctx, &api.ListTasksRequest{Status: api.TaskWorking})
		if err != nil {
			return
		}
		for _, summary := range page.Tasks {
			_, _ = adapter.CancelTask(ctx, summary.ID)
		}
	}}
	f.orchestrator.dispatcher.caller = hooked
	f.orchestrator.catalog = mesh.NewCatalog(
		&fakeLister{tools: []mcp.Tool{mcp.NewTool("fetch_data")}}, hooked, time.Minute)
	f.orchestrator.dispatcher.catalog = f.orchestrator.catalog

	result, err := f.orchestrator.RunWorkflow(ctx, &api.RunRequest{WorkflowID: "triage"})
	require.NoError(t, err)
	assert.Equal(t, api.TaskCancelled, result.Status)
	assert.Empty(t, f.llm.prompts, "the level after the cancellation never runs")

	stored, err := f.store.Get(ctx, result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, api.TaskCancelled, stored.Status)
}

type hookedCaller struct {
	inner api.ToolCaller
	hook  func()
}

func (h *hookedCaller) CallTool(ctx context.Context, providerID, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	h.hook()
	return h.inner.CallTool(ctx, providerID, toolName, args)
}

func TestSendMessage_StartsFreshWithoutThread(t *testing.T) {
	wf := api.Workflow{
		ID:    "chat",
		Title: "Chat",
		Steps: []api.Step{{
			Name:   "reply",
			Action: api.Action{Type: api.ActionLLM, Prompt: "@message"},
		}},
	}
	f := newFixture(t, wf)

	result, err := f.orchestrator.SendMessage(context.Background(), &api.MessageRequest{
		WorkflowID: "chat",
		Message:    "hello there",
		Source:     "slack",
		ChatID:     "C1",
	})
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, result.Status)
	assert.Equal(t, "assessed: hello there", result.Response)

	stored, err := f.store.Get(context.Background(), result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "slack", stored.Source)
	assert.Equal(t, "C1", stored.ChatID)
	assert.Empty(t, stored.History)
}

func TestSendMessage_ContinuesRecentThread(t *testing.T) {
	wf := api.Workflow{
		ID:    "chat",
		Title: "Chat",
		Steps: []api.Step{{
			Name:   "reply",
			Action: api.Action{Type: api.ActionLLM, Prompt: "@message"},
		}},
	}
	f := newFixture(t, wf)
	ctx := context.Background()

	first, err := f.orchestrator.SendMessage(ctx, &api.MessageRequest{
		WorkflowID: "chat",
		Message:    "first question",
		Source:     "slack",
		ChatID:     "C1",
	})
	require.NoError(t, err)

	second, err := f.orchestrator.SendMessage(ctx, &api.MessageRequest{
		WorkflowID: "chat",
		Message:    "follow up",
		Source:     "slack",
		ChatID:     "C1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.TaskID, second.TaskID, "continuation starts a new task")

	// the second task carries the first exchange as history
	stored, err := f.store.Get(ctx, second.TaskID)
	require.NoError(t, err)
	require.Len(t, stored.History, 2)
	assert.Equal(t, api.ChatMessage{Role: "user", Content: "first question"}, stored.History[0])
	assert.Equal(t, "assistant", stored.History[1].Role)
}

func TestSendMessage_ClosedThreadStartsFresh(t *testing.T) {
	wf := api.Workflow{
		ID:    "chat",
		Title: "Chat",
		Steps: []api.Step{{
			Name:   "reply",
			Action: api.Action{Type: api.ActionLLM, Prompt: "@message"},
		}},
	}
	f := newFixture(t, wf)
	ctx := context.Background()

	_, err := f.orchestrator.SendMessage(ctx, &api.MessageRequest{
		WorkflowID: "chat", Message: "first", Source: "slack", ChatID: "C1",
	})
	require.NoError(t, err)

	closed, err := f.orchestrator.threads.CloseThread(ctx, "slack", "C1")
	require.NoError(t, err)
	require.True(t, closed)

	second, err := f.orchestrator.SendMessage(ctx, &api.MessageRequest{
		WorkflowID: "chat", Message: "second", Source: "slack", ChatID: "C1",
	})
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, second.TaskID)
	require.NoError(t, err)
	assert.Empty(t, stored.History, "a closed thread does not contribute history")
}
