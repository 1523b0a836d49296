package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/events"
	"loom/internal/graph"
	"loom/pkg/logging"
)

// Manager owns the workflow definitions: YAML files loaded into memory,
// validated on load and on every mutation, hot-reloaded when the
// definition directory changes on disk.
//
// Two storage tiers exist: builtin definitions shipped with a
// deployment and custom definitions created at runtime. A custom
// definition shadows a builtin one with the same id; mutations only
// ever touch the custom tier.
type Manager struct {
	builtin *config.Storage
	custom  *config.Storage

	workflows map[string]*api.Workflow
	mu        sync.RWMutex

	events *events.Generator
}

// NewManager creates a workflow manager. builtinPath may be empty when
// a deployment ships no definitions of its own.
func NewManager(configPath, builtinPath string, eventGen *events.Generator) *Manager {
	m := &Manager{
		custom:    config.NewStorageWithPath(configPath, config.FormatYAML),
		workflows: make(map[string]*api.Workflow),
		events:    eventGen,
	}
	if builtinPath != "" {
		m.builtin = config.NewStorageWithPath(builtinPath, config.FormatYAML)
	}
	return m
}

// Register registers this manager with the central API layer.
func (m *Manager) Register() {
	api.RegisterWorkflow(m)
}

// LoadDefinitions loads every workflow YAML file into memory: builtin
// tier first, custom tier second so custom definitions shadow builtin
// ones. Invalid files are skipped with a logged summary, never fatal.
func (m *Manager) LoadDefinitions() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workflows = make(map[string]*api.Workflow)

	var errorCollection config.ValidationErrors
	if m.builtin != nil {
		m.loadTier(m.builtin, "builtin", &errorCollection)
	}
	m.loadTier(m.custom, "custom", &errorCollection)

	if errorCollection.HasErrors() {
		logging.Warn("WorkflowManager", "Some workflow files had errors:\n%s", errorCollection.Error())
	}

	logging.Info("WorkflowManager", "Loaded %d workflows", len(m.workflows))
	return nil
}

func (m *Manager) loadTier(storage *config.Storage, tier string, errorCollection *config.ValidationErrors) {
	ids, err := storage.List("workflows")
	if err != nil {
		logging.Debug("WorkflowManager", "No %s workflow definitions: %v", tier, err)
		return
	}

	for _, id := range ids {
		data, err := storage.Load("workflows", id)
		if err != nil {
			errorCollection.Add(id, fmt.Sprintf("failed to read: %v", err))
			continue
		}

		var wf api.Workflow
		if err := yaml.Unmarshal(data, &wf); err != nil {
			errorCollection.Add(id, fmt.Sprintf("invalid YAML: %v", err))
			continue
		}
		if wf.ID == "" {
			wf.ID = id
		}
		if err := m.validate(&wf); err != nil {
			errorCollection.Add(id, err.Error())
			continue
		}

		m.workflows[wf.ID] = &wf
	}
}

// Watch hot-reloads definitions when the custom workflows directory
// changes on disk. Events are debounced so editors that write multiple
// times per save trigger one reload.
func (m *Manager) Watch(ctx context.Context) error {
	dir, err := m.custom.EntityDir("workflows")
	if err != nil {
		return fmt.Errorf("failed to resolve workflows directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		var reload *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isYAMLFile(event.Name) {
					continue
				}
				logging.Debug("WorkflowManager", "Definition change detected: %s %s", event.Op, event.Name)
				if reload != nil {
					reload.Stop()
				}
				reload = time.AfterFunc(500*time.Millisecond, func() {
					if err := m.LoadDefinitions(); err != nil {
						logging.Warn("WorkflowManager", "Hot reload failed: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("WorkflowManager", "Watcher error: %v", err)
			}
		}
	}()

	logging.Info("WorkflowManager", "Watching %s for definition changes", dir)
	return nil
}

func isYAMLFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// GetWorkflow returns one definition by id.
func (m *Manager) GetWorkflow(id string) (*api.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[id]
	if !ok {
		return nil, api.NewWorkflowNotFoundError(id)
	}
	return wf, nil
}

// ListWorkflows returns every definition sorted by id.
func (m *Manager) ListWorkflows() []api.Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]api.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		list = append(list, *wf)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// CreateWorkflow validates and persists a new custom definition.
func (m *Manager) CreateWorkflow(wf api.Workflow) error {
	if err := m.validate(&wf); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[wf.ID]; exists {
		return fmt.Errorf("workflow %s already exists", wf.ID)
	}

	wf.CreatedAt = time.Now()
	wf.LastModified = wf.CreatedAt
	if err := m.save(&wf); err != nil {
		return err
	}

	m.workflows[wf.ID] = &wf
	m.events.Publish(events.ReasonWorkflowCreated, events.EventData{WorkflowID: wf.ID})
	logging.Info("WorkflowManager", "Created workflow %s", wf.ID)
	return nil
}

// UpdateWorkflow validates and persists a changed definition.
func (m *Manager) UpdateWorkflow(id string, wf api.Workflow) error {
	if wf.ID == "" {
		wf.ID = id
	}
	if wf.ID != id {
		return fmt.Errorf("workflow id mismatch: %s vs %s", id, wf.ID)
	}
	if err := m.validate(&wf); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.workflows[id]
	if !ok {
		return api.NewWorkflowNotFoundError(id)
	}

	wf.CreatedAt = existing.CreatedAt
	wf.LastModified = time.Now()
	if err := m.save(&wf); err != nil {
		return err
	}

	m.workflows[id] = &wf
	m.events.Publish(events.ReasonWorkflowUpdated, events.EventData{WorkflowID: id})
	logging.Info("WorkflowManager", "Updated workflow %s", id)
	return nil
}

// DeleteWorkflow removes a custom definition. Deleting an id that only
// exists in the builtin tier fails.
func (m *Manager) DeleteWorkflow(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[id]; !ok {
		return api.NewWorkflowNotFoundError(id)
	}

	if err := m.custom.Delete("workflows", id); err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	delete(m.workflows, id)
	m.events.Publish(events.ReasonWorkflowDeleted, events.EventData{WorkflowID: id})
	logging.Info("WorkflowManager", "Deleted workflow %s", id)
	return nil
}

// ValidateWorkflow checks a definition without persisting it.
func (m *Manager) ValidateWorkflow(wf api.Workflow) error {
	return m.validate(&wf)
}

func (m *Manager) save(wf *api.Workflow) error {
	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", wf.ID, err)
	}
	if err := m.custom.Save("workflows", wf.ID, data); err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", wf.ID, err)
	}
	return nil
}

// validate performs full definition validation, collecting every
// problem instead of stopping at the first.
func (m *Manager) validate(wf *api.Workflow) error {
	var errs config.ValidationErrors

	if err := config.ValidateEntityName(wf.ID, "workflow"); err != nil {
		errs = append(errs, err.(config.ValidationError))
	}
	if wf.Description != "" {
		if err := config.ValidateMaxLength("description", wf.Description, 500); err != nil {
			errs = append(errs, err.(config.ValidationError))
		}
	}

	for name, arg := range wf.Args {
		if err := config.ValidateOneOf(
			fmt.Sprintf("args[%s].type", name), arg.Type,
			[]string{"string", "number", "boolean", "object", "array"},
		); err != nil {
			errs = append(errs, err.(config.ValidationError))
		}
		if arg.Required && arg.Default != nil {
			errs.Add(fmt.Sprintf("args[%s]", name), "a required arg cannot carry a default")
		}
	}

	if len(wf.Steps) == 0 {
		errs.Add("steps", "workflow must have at least one step")
	}

	names := make(map[string]bool, len(wf.Steps))
	for i, step := range wf.Steps {
		field := fmt.Sprintf("steps[%d]", i)

		if step.Name == "" {
			errs.Add(field+".name", "step name cannot be empty")
			continue
		}
		if names[step.Name] {
			errs.Add(field+".name", fmt.Sprintf("duplicate step name %q", step.Name))
		}
		names[step.Name] = true

		m.validateAction(field, &step, &errs)

		if step.Config.SkipIf != "" &&
			!strings.HasPrefix(step.Config.SkipIf, "empty:") &&
			!strings.HasPrefix(step.Config.SkipIf, "equals:") {
			errs.Add(field+".config.skipIf", fmt.Sprintf("unknown skip expression %q", step.Config.SkipIf))
		}
		if step.Config.Retries < 0 {
			errs.Add(field+".config.retries", "cannot be negative")
		}
	}

	// cycles fail validation outright rather than degrading to level 0
	if len(wf.Steps) > 0 {
		if err := graph.DetectCycle(wf.Steps); err != nil {
			errs.Add("steps", err.Error())
		}
	}

	if errs.HasErrors() {
		return config.FormatValidationError("workflow", wf.ID, errs)
	}
	return nil
}

func (m *Manager) validateAction(field string, step *api.Step, errs *config.ValidationErrors) {
	action := step.Action
	switch action.Type {
	case api.ActionTool:
		if action.Tool == "" {
			errs.Add(field+".action.tool", "tool steps must name a tool")
		}
	case api.ActionCode:
		if _, err := LookupTransform(action.Transform); err != nil {
			errs.Add(field+".action.transform", err.Error())
		}
	case api.ActionLLM:
		if action.Prompt == "" {
			errs.Add(field+".action.prompt", "llm steps must carry a prompt")
		}
		if action.Model != "" && action.Model != api.ModelFast && action.Model != api.ModelSmart {
			errs.Add(field+".action.model", fmt.Sprintf("unknown model tier %q", action.Model))
		}
		if action.MaxIterations < 0 {
			errs.Add(field+".action.maxIterations", "cannot be negative")
		}
	case api.ActionTemplate:
		if action.Template == "" {
			errs.Add(field+".action.template", "template steps must carry a template")
		}
	default:
		errs.Add(field+".action.type", fmt.Sprintf("unknown action type %q", action.Type))
	}
}
