package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/api"
)

func validWorkflow(id string) api.Workflow {
	return api.Workflow{
		ID:    id,
		Title: "Test workflow",
		Steps: []api.Step{{
			Name:   "only",
			Action: api.Action{Type: api.ActionTemplate, Template: "done"},
		}},
	}
}

func writeDefinition(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, "workflows")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDefinitions_CustomShadowsBuiltin(t *testing.T) {
	builtinDir := t.TempDir()
	customDir := t.TempDir()

	writeDefinition(t, builtinDir, "greet.yaml", `
title: Builtin greeting
steps:
  - name: greet
    action:
      type: template
      template: "hello from builtin"
`)
	writeDefinition(t, builtinDir, "ping.yaml", `
title: Ping
steps:
  - name: ping
    action:
      type: template
      template: "pong"
`)
	writeDefinition(t, customDir, "greet.yaml", `
title: Custom greeting
steps:
  - name: greet
    action:
      type: template
      template: "hello from custom"
`)

	m := NewManager(customDir, builtinDir, nil)
	require.NoError(t, m.LoadDefinitions())

	list := m.ListWorkflows()
	require.Len(t, list, 2)
	assert.Equal(t, "greet", list[0].ID, "sorted by id")
	assert.Equal(t, "ping", list[1].ID)

	wf, err := m.GetWorkflow("greet")
	require.NoError(t, err)
	assert.Equal(t, "Custom greeting", wf.Title)
}

func TestLoadDefinitions_IDDefaultsFromFilename(t *testing.T) {
	customDir := t.TempDir()
	writeDefinition(t, customDir, "nightly-report.yaml", `
title: Nightly report
steps:
  - name: report
    action:
      type: template
      template: "report"
`)

	m := NewManager(customDir, "", nil)
	require.NoError(t, m.LoadDefinitions())

	_, err := m.GetWorkflow("nightly-report")
	assert.NoError(t, err)
}

func TestLoadDefinitions_InvalidFileIsSkipped(t *testing.T) {
	customDir := t.TempDir()
	writeDefinition(t, customDir, "good.yaml", `
title: Good
steps:
  - name: ok
    action:
      type: template
      template: "ok"
`)
	writeDefinition(t, customDir, "broken.yaml", `
title: Broken
steps: []
`)
	writeDefinition(t, customDir, "garbage.yaml", "{{{ not yaml")

	m := NewManager(customDir, "", nil)
	require.NoError(t, m.LoadDefinitions(), "bad files never fail the load")

	assert.Len(t, m.ListWorkflows(), 1)
	_, err := m.GetWorkflow("good")
	assert.NoError(t, err)
}

func TestCreateWorkflow_PersistsAndRejectsDuplicates(t *testing.T) {
	customDir := t.TempDir()
	m := NewManager(customDir, "", nil)

	require.NoError(t, m.CreateWorkflow(validWorkflow("deploy")))
	assert.FileExists(t, filepath.Join(customDir, "workflows", "deploy.yaml"))

	err := m.CreateWorkflow(validWorkflow("deploy"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// a fresh manager over the same directory sees the definition
	reloaded := NewManager(customDir, "", nil)
	require.NoError(t, reloaded.LoadDefinitions())
	wf, err := reloaded.GetWorkflow("deploy")
	require.NoError(t, err)
	assert.Equal(t, "Test workflow", wf.Title)
}

func TestUpdateWorkflow(t *testing.T) {
	m := NewManager(t.TempDir(), "", nil)
	require.NoError(t, m.CreateWorkflow(validWorkflow("deploy")))

	created, err := m.GetWorkflow("deploy")
	require.NoError(t, err)
	createdAt := created.CreatedAt

	changed := validWorkflow("deploy")
	changed.Title = "Changed"
	require.NoError(t, m.UpdateWorkflow("deploy", changed))

	wf, err := m.GetWorkflow("deploy")
	require.NoError(t, err)
	assert.Equal(t, "Changed", wf.Title)
	assert.Equal(t, createdAt, wf.CreatedAt, "creation time survives updates")
	assert.True(t, wf.LastModified.After(createdAt) || wf.LastModified.Equal(createdAt))

	err = m.UpdateWorkflow("deploy", validWorkflow("other"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id mismatch")

	err = m.UpdateWorkflow("ghost", validWorkflow("ghost"))
	assert.True(t, api.IsNotFound(err))
}

func TestDeleteWorkflow(t *testing.T) {
	customDir := t.TempDir()
	m := NewManager(customDir, "", nil)
	require.NoError(t, m.CreateWorkflow(validWorkflow("deploy")))

	require.NoError(t, m.DeleteWorkflow("deploy"))
	assert.NoFileExists(t, filepath.Join(customDir, "workflows", "deploy.yaml"))

	_, err := m.GetWorkflow("deploy")
	assert.True(t, api.IsNotFound(err))

	err = m.DeleteWorkflow("deploy")
	assert.True(t, api.IsNotFound(err))
}

func TestGetWorkflow_Unknown(t *testing.T) {
	m := NewManager(t.TempDir(), "", nil)
	_, err := m.GetWorkflow("nope")
	assert.True(t, api.IsNotFound(err))
}

func TestValidateWorkflow(t *testing.T) {
	m := NewManager(t.TempDir(), "", nil)

	tests := []struct {
		name    string
		mutate  func(*api.Workflow)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(wf *api.Workflow) {},
		},
		{
			name:    "no steps",
			mutate:  func(wf *api.Workflow) { wf.Steps = nil },
			wantErr: "at least one step",
		},
		{
			name: "empty step name",
			mutate: func(wf *api.Workflow) {
				wf.Steps[0].Name = ""
			},
			wantErr: "step name cannot be empty",
		},
		{
			name: "duplicate step names",
			mutate: func(wf *api.Workflow) {
				wf.Steps = append(wf.Steps, wf.Steps[0])
			},
			wantErr: "duplicate step name",
		},
		{
			name: "tool step without tool",
			mutate: func(wf *api.Workflow) {
				wf.Steps[0].Action = api.Action{Type: api.ActionTool}
			},
			wantErr: "must name a tool",
		},
		{
			name: "code step with unknown transform",
			mutate: func(wf *api.Workflow) {
				wf.Steps[0].Action = api.Action{Type: api.ActionCode, Transform: "eval"}
			},
			wantErr: "unknown transform",
		},
		{
			name: "llm step without prompt",
			mutate: func(wf *api.Workflow) {
				wf.Steps[0].Action = api.Action{Type: api.ActionLLM}
			},
			wantErr: "must carry a prompt",
		},
		{
			name: "llm step with unknown model tier",
			mutate: func(wf *api.Workflow) {
				wf.Steps[0].Action = api.Action{Type: api.ActionLLM, Prompt: "p", Model: "huge"}
			},
			wantErr: "unknown model tier",
		},
		{
			name: "unknown action type",
			mutate: func(wf *api.Workflow) {
				wf.Steps[0].Action = api.Action{Type: "shell"}
			},
			wantErr: "unknown action type",
		},
		{
			name: "unknown skip expression",
			mutate: func(wf *api.Workflow) {
				wf.Steps[0].Config.SkipIf = "unless:@x"
			},
			wantErr: "unknown skip expression",
		},
		{
			name: "negative retries",
			mutate: func(wf *api.Workflow) {
				wf.Steps[0].Config.Retries = -1
			},
			wantErr: "cannot be negative",
		},
		{
			name: "bad arg type",
			mutate: func(wf *api.Workflow) {
				wf.Args = map[string]api.ArgDefinition{"x": {Type: "integer"}}
			},
			wantErr: "args[x].type",
		},
		{
			name: "required arg with default",
			mutate: func(wf *api.Workflow) {
				wf.Args = map[string]api.ArgDefinition{"x": {Type: "string", Required: true, Default: "v"}}
			},
			wantErr: "required arg cannot carry a default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := validWorkflow("candidate")
			tt.mutate(&wf)
			err := m.ValidateWorkflow(wf)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateWorkflow_CycleIsRejected(t *testing.T) {
	m := NewManager(t.TempDir(), "", nil)

	wf := api.Workflow{
		ID:    "cyclic",
		Title: "Cyclic",
		Steps: []api.Step{
			{
				Name:   "a",
				Action: api.Action{Type: api.ActionTemplate, Template: "@b"},
			},
			{
				Name:   "b",
				Action: api.Action{Type: api.ActionTemplate, Template: "@a"},
			},
		},
	}
	err := m.ValidateWorkflow(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidateWorkflow_CollectsEveryProblem(t *testing.T) {
	m := NewManager(t.TempDir(), "", nil)

	wf := api.Workflow{
		ID:    "messy",
		Title: "Messy",
		Steps: []api.Step{
			{Name: "", Action: api.Action{Type: api.ActionTool}},
			{Name: "b", Action: api.Action{Type: api.ActionLLM}},
		},
	}
	err := m.ValidateWorkflow(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step name cannot be empty")
	assert.Contains(t, err.Error(), "must carry a prompt")
}
