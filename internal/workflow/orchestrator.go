package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/events"
	"loom/internal/graph"
	"loom/internal/mesh"
	"loom/internal/task"
	"loom/internal/template"
	"loom/internal/thread"
	"loom/pkg/logging"
)

// Orchestrator is the top-level run driver: it loads and validates the
// workflow, levels its steps, dispatches each level concurrently,
// persists every step transition to the task store and produces the
// final output plus a derived natural-language response.
type Orchestrator struct {
	manager    *Manager
	dispatcher *Dispatcher
	catalog    *mesh.Catalog
	store      task.Store
	threads    *thread.Manager
	events     *events.Generator
	cfg        config.EngineConfig
}

// NewOrchestrator wires the run driver. eventGen may be nil.
func NewOrchestrator(manager *Manager, dispatcher *Dispatcher, catalog *mesh.Catalog, store task.Store, threads *thread.Manager, eventGen *events.Generator, cfg config.EngineConfig) *Orchestrator {
	cfg.ApplyDefaults()
	return &Orchestrator{
		manager:    manager,
		dispatcher: dispatcher,
		catalog:    catalog,
		store:      store,
		threads:    threads,
		events:     eventGen,
		cfg:        cfg,
	}
}

// Register registers this orchestrator with the central API layer.
func (o *Orchestrator) Register() {
	api.RegisterOrchestrator(o)
}

// RunWorkflow executes one workflow synchronously. The task record
// persists independently of the returned result.
func (o *Orchestrator) RunWorkflow(ctx context.Context, req *api.RunRequest) (*api.RunResult, error) {
	wf, err := o.manager.GetWorkflow(req.WorkflowID)
	if err != nil {
		return nil, err
	}

	input, err := prepareInput(wf, req.Input)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", wf.ID, err)
	}

	o.precheckTools(ctx, wf)

	t := task.New(&api.RunRequest{
		WorkflowID: req.WorkflowID,
		Input:      input,
		Source:     req.Source,
		ChatID:     req.ChatID,
		History:    req.History,
		TTLMs:      req.TTLMs,
	}, time.Now())
	if err := o.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	logging.Info("Orchestrator", "Task %s started for workflow %s", t.ID, wf.ID)
	o.events.Publish(events.ReasonTaskStarted, events.EventData{TaskID: t.ID, WorkflowID: wf.ID})

	result := o.runLevels(ctx, wf, t, input, req.History)
	return result, nil
}

// SendMessage routes a conversational message to a workflow,
// transparently continuing the most recent eligible task's context
// within the thread TTL window.
func (o *Orchestrator) SendMessage(ctx context.Context, req *api.MessageRequest) (*api.RunResult, error) {
	var history []api.ChatMessage
	if o.threads != nil {
		prior, err := o.threads.FindContinuableThread(ctx, req.Source, req.ChatID)
		if err != nil {
			logging.Warn("Orchestrator", "Thread lookup failed, starting fresh: %v", err)
		} else if prior != nil {
			history = o.threads.BuildHistory(prior)
			o.events.Publish(events.ReasonThreadContinued, events.EventData{
				TaskID:     prior.ID,
				WorkflowID: req.WorkflowID,
			})
		}
	}

	input := make(map[string]interface{}, len(req.Input)+1)
	for k, v := range req.Input {
		input[k] = v
	}
	input["message"] = req.Message

	return o.RunWorkflow(ctx, &api.RunRequest{
		WorkflowID: req.WorkflowID,
		Input:      input,
		Source:     req.Source,
		ChatID:     req.ChatID,
		History:    history,
	})
}

// stepState is the settled outcome of one step within a level.
type stepState struct {
	step    *api.Step
	outcome *StepOutcome
	err     error
}

// runLevels walks the dependency levels in order. Within a level all
// steps run concurrently and outputs commit only after the whole level
// settles, so no step ever observes a sibling's partial output.
func (o *Orchestrator) runLevels(ctx context.Context, wf *api.Workflow, t *api.Task, input map[string]interface{}, history []api.ChatMessage) *api.RunResult {
	levels := graph.GroupByLevel(wf.Steps)
	stepOutputs := make(map[string]interface{})
	rctx := &template.Context{Input: input, Steps: stepOutputs}

	indexByName := make(map[string]int, len(wf.Steps))
	for i := range wf.Steps {
		indexByName[wf.Steps[i].Name] = i
	}

	for _, level := range levels {
		// cancellation is cooperative: it is re-checked between levels
		// and never aborts in-flight external calls
		if o.isCancelled(ctx, t.ID) {
			logging.Info("Orchestrator", "Task %s cancelled, stopping before next level", t.ID)
			o.events.Publish(events.ReasonTaskCancelled, events.EventData{TaskID: t.ID, WorkflowID: wf.ID})
			return &api.RunResult{TaskID: t.ID, Status: api.TaskCancelled}
		}

		states := make([]stepState, len(level))
		g, gctx := errgroup.WithContext(ctx)
		for i := range level {
			i := i
			step := level[i]
			g.Go(func() error {
				outcome, err := o.runStep(gctx, t.ID, indexByName[step.Name], &step, rctx, history)
				states[i] = stepState{step: &step, outcome: outcome, err: err}
				// errors settle in states; the level always drains
				return nil
			})
		}
		_ = g.Wait()

		// commit the level: successful outputs first, then failures
		for _, s := range states {
			if s.err == nil && !s.outcome.Skipped {
				stepOutputs[s.step.Name] = s.outcome.Output
			}
		}
		for _, s := range states {
			if s.err == nil {
				continue
			}
			if s.step.Config.ContinueOnError {
				logging.Warn("Orchestrator", "Task %s step %s failed, continuing with null output: %v",
					t.ID, s.step.Name, s.err)
				stepOutputs[s.step.Name] = nil
				continue
			}
			return o.failTask(t.ID, wf.ID, s.err)
		}
	}

	output, response := o.finalize(t.ID, wf, stepOutputs)

	o.mutateTask(t.ID, func(t *api.Task) error {
		if err := task.Transition(t, api.TaskCompleted); err != nil {
			return err
		}
		t.Result = output
		t.Response = response
		return nil
	})

	logging.Info("Orchestrator", "Task %s completed", t.ID)
	o.events.Publish(events.ReasonTaskCompleted, events.EventData{
		TaskID:     t.ID,
		WorkflowID: wf.ID,
		StepCount:  len(wf.Steps),
	})

	return &api.RunResult{
		TaskID:   t.ID,
		Status:   api.TaskCompleted,
		Output:   output,
		Response: response,
	}
}

// runStep persists the running transition, dispatches the step and
// persists its settled result.
func (o *Orchestrator) runStep(ctx context.Context, taskID string, stepIndex int, step *api.Step, rctx *template.Context, history []api.ChatMessage) (*StepOutcome, error) {
	startedAt := time.Now()
	o.mutateTask(taskID, func(t *api.Task) error {
		t.CurrentStepIndex = stepIndex
		task.UpsertStepResult(t, api.StepResult{
			StepID:    step.Name,
			StepName:  step.Name,
			Status:    api.StepRunning,
			StartedAt: startedAt,
		})
		return nil
	})
	o.events.Publish(events.ReasonStepStarted, events.EventData{TaskID: taskID, StepName: step.Name})

	onProgress := func(text string) {
		o.mutateTask(taskID, func(t *api.Task) error {
			task.AppendProgress(t, step.Name, text, time.Now())
			return nil
		})
		o.events.Publish(events.ReasonStepProgress, events.EventData{
			TaskID:   taskID,
			StepName: step.Name,
			Message:  text,
		})
	}

	outcome, err := o.dispatcher.Dispatch(ctx, step, rctx, history, onProgress)
	completedAt := time.Now()

	switch {
	case err != nil:
		o.mutateTask(taskID, func(t *api.Task) error {
			task.UpsertStepResult(t, api.StepResult{
				StepID:      step.Name,
				StepName:    step.Name,
				Status:      api.StepFailed,
				StartedAt:   startedAt,
				CompletedAt: &completedAt,
				Error:       err.Error(),
			})
			return nil
		})
		o.events.Publish(events.ReasonStepFailed, events.EventData{
			TaskID:   taskID,
			StepName: step.Name,
			Error:    err.Error(),
		})
		return nil, err

	case outcome.Skipped:
		o.mutateTask(taskID, func(t *api.Task) error {
			task.UpsertStepResult(t, api.StepResult{
				StepID:      step.Name,
				StepName:    step.Name,
				Status:      api.StepSkipped,
				StartedAt:   startedAt,
				CompletedAt: &completedAt,
			})
			return nil
		})
		o.events.Publish(events.ReasonStepSkipped, events.EventData{TaskID: taskID, StepName: step.Name})
		return outcome, nil

	default:
		o.mutateTask(taskID, func(t *api.Task) error {
			task.UpsertStepResult(t, api.StepResult{
				StepID:      step.Name,
				StepName:    step.Name,
				Status:      api.StepCompleted,
				StartedAt:   startedAt,
				CompletedAt: &completedAt,
				Output:      outcome.Output,
			})
			return nil
		})
		o.events.Publish(events.ReasonStepCompleted, events.EventData{TaskID: taskID, StepName: step.Name})
		return outcome, nil
	}
}

// failTask marks the task failed with a human-readable error and a
// conversational fallback response.
func (o *Orchestrator) failTask(taskID, workflowID string, stepErr error) *api.RunResult {
	message := stepErr.Error()
	response := fmt.Sprintf("The workflow failed: %s", message)

	o.mutateTask(taskID, func(t *api.Task) error {
		if err := task.Transition(t, api.TaskFailed); err != nil {
			return err
		}
		t.Error = message
		t.Response = response
		return nil
	})

	logging.Warn("Orchestrator", "Task %s failed: %s", taskID, message)
	o.events.Publish(events.ReasonTaskFailed, events.EventData{
		TaskID:     taskID,
		WorkflowID: workflowID,
		Error:      message,
	})

	return &api.RunResult{
		TaskID:   taskID,
		Status:   api.TaskFailed,
		Response: response,
		Error:    message,
	}
}

// mutateTask applies a task mutation, logging persistence errors
// instead of crashing the run.
func (o *Orchestrator) mutateTask(taskID string, mutate func(*api.Task) error) {
	if _, err := o.store.Update(context.Background(), taskID, mutate); err != nil {
		logging.Error("Orchestrator", err, "Failed to persist task %s", taskID)
	}
}

// isCancelled reloads the task and reports a stored cancelled status.
func (o *Orchestrator) isCancelled(ctx context.Context, taskID string) bool {
	t, err := o.store.Get(ctx, taskID)
	if err != nil {
		return false
	}
	return t.Status == api.TaskCancelled
}

// finalize derives the run's final output and response. The output is
// the last non-skipped step's committed output in definition order,
// enriched with the task id when it is an object; the response prefers
// the output's own response field.
func (o *Orchestrator) finalize(taskID string, wf *api.Workflow, stepOutputs map[string]interface{}) (interface{}, string) {
	var output interface{}
	for i := len(wf.Steps) - 1; i >= 0; i-- {
		if v, ok := stepOutputs[wf.Steps[i].Name]; ok {
			output = v
			break
		}
	}

	if m, ok := output.(map[string]interface{}); ok {
		enriched := make(map[string]interface{}, len(m)+1)
		for k, v := range m {
			enriched[k] = v
		}
		enriched["taskId"] = taskID
		output = enriched
	}

	return output, deriveResponse(output)
}

func deriveResponse(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return "The workflow completed."
	case string:
		return v
	case map[string]interface{}:
		if response, ok := v["response"].(string); ok && response != "" {
			return response
		}
	}
	data, err := json.Marshal(output)
	if err != nil {
		return "The workflow completed."
	}
	return string(data)
}

// precheckTools warns about statically required tools that are missing
// from the catalog. The check is advisory: providers may appear between
// validation and execution, so a miss never blocks the run.
func (o *Orchestrator) precheckTools(ctx context.Context, wf *api.Workflow) {
	if o.catalog == nil {
		return
	}
	for _, step := range wf.Steps {
		if step.Action.Type != api.ActionTool || step.Action.ConnectionID != "" {
			continue
		}
		if _, _, err := o.catalog.FindProvider(ctx, step.Action.Tool); err != nil {
			logging.Warn("Orchestrator", "Workflow %s step %s requires tool %s which is currently unavailable",
				wf.ID, step.Name, step.Action.Tool)
		}
	}
}

// prepareInput merges the caller input over the workflow's default
// input and applies arg defaults and checks.
func prepareInput(wf *api.Workflow, callerInput map[string]interface{}) (map[string]interface{}, error) {
	merged := make(map[string]interface{}, len(wf.DefaultInput)+len(callerInput))
	for k, v := range wf.DefaultInput {
		merged[k] = v
	}
	for k, v := range callerInput {
		merged[k] = v
	}

	for name, def := range wf.Args {
		value, present := merged[name]
		if !present {
			if def.Default != nil {
				merged[name] = def.Default
				continue
			}
			if def.Required {
				return nil, fmt.Errorf("missing required arg %q", name)
			}
			continue
		}
		if err := checkArgType(name, value, def.Type); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func checkArgType(name string, value interface{}, argType string) error {
	ok := true
	switch argType {
	case "string":
		_, ok = value.(string)
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			ok = false
		}
	case "boolean":
		_, ok = value.(bool)
	case "object":
		_, ok = value.(map[string]interface{})
	case "array":
		_, ok = value.([]interface{})
	}
	if !ok {
		return fmt.Errorf("arg %q must be a %s, got %T", name, argType, value)
	}
	return nil
}
