package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"loom/internal/agent"
	"loom/internal/api"
	"loom/internal/mesh"
	"loom/internal/template"
	"loom/pkg/logging"
)

// Dispatcher executes one step at a time: it evaluates the skip
// condition, resolves the step input against workflow input and prior
// step outputs, routes to the action's execution strategy and validates
// the declared output schema.
type Dispatcher struct {
	catalog *mesh.Catalog
	caller  api.ToolCaller
	loop    *agent.Loop
	engine  *template.Engine
}

// NewDispatcher creates a step dispatcher. caller is used for
// connection-pinned tool steps; unpinned steps resolve their provider
// through the catalog.
func NewDispatcher(catalog *mesh.Catalog, caller api.ToolCaller, loop *agent.Loop) *Dispatcher {
	return &Dispatcher{
		catalog: catalog,
		caller:  caller,
		loop:    loop,
		engine:  template.New(),
	}
}

// StepOutcome is the result of dispatching one step.
type StepOutcome struct {
	// Output is the committed step output; nil when Skipped
	Output interface{}

	// Skipped marks a step whose skip condition fired; it occupies no
	// key in the step outputs
	Skipped bool
}

// Dispatch runs one step against the resolution context. history is the
// task's conversational context, offered to llm steps only. Per-step
// retries, backoff and timeout from the step config apply to external
// calls; errors are wrapped with the step name.
func (d *Dispatcher) Dispatch(ctx context.Context, step *api.Step, rctx *template.Context, history []api.ChatMessage, onProgress func(string)) (*StepOutcome, error) {
	if step.Config.SkipIf != "" {
		skip, err := d.evaluateSkip(step.Config.SkipIf, rctx)
		if err != nil {
			return nil, fmt.Errorf("step %s: invalid skipIf: %w", step.Name, err)
		}
		if skip {
			logging.Debug("Dispatcher", "Step %s skipped (%s)", step.Name, step.Config.SkipIf)
			return &StepOutcome{Skipped: true}, nil
		}
	}

	resolvedInput := d.resolveInput(step.Input, rctx)

	output, err := d.execute(ctx, step, resolvedInput, rctx, history, onProgress)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", step.Name, err)
	}

	if step.OutputSchema != nil {
		if err := validateOutput(output, step.OutputSchema); err != nil {
			return nil, fmt.Errorf("step %s: output validation failed: %w", step.Name, err)
		}
	}

	return &StepOutcome{Output: output}, nil
}

func (d *Dispatcher) execute(ctx context.Context, step *api.Step, input map[string]interface{}, rctx *template.Context, history []api.ChatMessage, onProgress func(string)) (interface{}, error) {
	action := step.Action

	switch action.Type {
	case api.ActionTool:
		return d.executeTool(ctx, step, input)

	case api.ActionCode:
		transform, err := LookupTransform(action.Transform)
		if err != nil {
			return nil, err
		}
		output, err := transform(input)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", action.Transform, err)
		}
		return output, nil

	case api.ActionLLM:
		prompt, err := d.engine.Render(action.Prompt, rctx)
		if err != nil {
			return nil, fmt.Errorf("failed to render prompt: %w", err)
		}
		runCtx, cancel := d.stepContext(ctx, step)
		defer cancel()
		final, err := d.loop.Run(runCtx, &agent.RunParams{
			Prompt:        prompt,
			SystemPrompt:  action.SystemPrompt,
			Model:         action.Model,
			Tools:         template.Resolve(action.Tools, rctx),
			MaxIterations: action.MaxIterations,
			History:       history,
			OnProgress:    onProgress,
		})
		if err != nil {
			return nil, err
		}
		return final.Output(), nil

	case api.ActionTemplate:
		rendered, err := d.engine.Render(action.Template, rctx)
		if err != nil {
			return nil, fmt.Errorf("failed to render template: %w", err)
		}
		return rendered, nil

	default:
		return nil, fmt.Errorf("unknown action type %q", action.Type)
	}
}

// executeTool invokes the step's tool with retries and backoff. An
// explicit connection id pins the provider; otherwise every known
// provider is searched and a missing provider is a hard error.
func (d *Dispatcher) executeTool(ctx context.Context, step *api.Step, input map[string]interface{}) (interface{}, error) {
	action := step.Action
	attempts := step.Config.Retries + 1
	backoff := time.Duration(step.Config.BackoffMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			logging.Debug("Dispatcher", "Step %s retrying tool %s (attempt %d/%d)",
				step.Name, action.Tool, attempt+1, attempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := d.stepContext(ctx, step)
		output, err := d.callTool(callCtx, action, input)
		cancel()
		if err == nil {
			return output, nil
		}
		lastErr = err
		if api.IsNotFound(err) {
			// resolution errors do not heal with retries
			return nil, err
		}
	}
	return nil, lastErr
}

func (d *Dispatcher) callTool(ctx context.Context, action api.Action, input map[string]interface{}) (interface{}, error) {
	if action.ConnectionID != "" {
		if d.caller == nil {
			return nil, fmt.Errorf("no tool caller configured for connection %s", action.ConnectionID)
		}
		result, err := d.caller.CallTool(ctx, action.ConnectionID, action.Tool, input)
		if err != nil {
			return nil, err
		}
		return toolOutput(result)
	}

	result, err := d.catalog.Call(ctx, action.Tool, input)
	if err != nil {
		return nil, err
	}
	return toolOutput(result)
}

// stepContext derives a per-call context honoring the step's timeout.
func (d *Dispatcher) stepContext(ctx context.Context, step *api.Step) (context.Context, context.CancelFunc) {
	if step.Config.TimeoutMs <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(step.Config.TimeoutMs)*time.Millisecond)
}

// resolveInput resolves @refs throughout the step input.
func (d *Dispatcher) resolveInput(input map[string]interface{}, rctx *template.Context) map[string]interface{} {
	if input == nil {
		return nil
	}
	resolved := template.Resolve(input, rctx)
	if m, ok := resolved.(map[string]interface{}); ok {
		return m
	}
	return input
}

// evaluateSkip interprets a skip expression:
//
//	empty:@ref       skip when the value is missing, nil or an empty array
//	equals:@a,@b     skip when both operands are deep-equal
func (d *Dispatcher) evaluateSkip(expr string, rctx *template.Context) (bool, error) {
	switch {
	case strings.HasPrefix(expr, "empty:"):
		operand := strings.TrimSpace(strings.TrimPrefix(expr, "empty:"))
		return isEmptyValue(resolveOperand(operand, rctx)), nil

	case strings.HasPrefix(expr, "equals:"):
		rest := strings.TrimPrefix(expr, "equals:")
		parts := strings.SplitN(rest, ",", 2)
		if len(parts) != 2 {
			return false, fmt.Errorf("equals requires two comma-separated operands, got %q", rest)
		}
		a := resolveOperand(strings.TrimSpace(parts[0]), rctx)
		b := resolveOperand(strings.TrimSpace(parts[1]), rctx)
		return deepEqual(a, b), nil

	default:
		return false, fmt.Errorf("unknown skip expression %q", expr)
	}
}

// resolveOperand resolves a skip operand: an @ref resolves against the
// context (nil when unresolvable), anything else is a literal.
func resolveOperand(operand string, rctx *template.Context) interface{} {
	if !strings.HasPrefix(operand, "@") {
		return operand
	}
	resolved := template.Resolve(operand, rctx)
	if s, ok := resolved.(string); ok && s == operand {
		// the token came back literal, so the reference is undefined
		return nil
	}
	return resolved
}

// isEmptyValue reports whether a skip operand counts as empty: an
// undefined reference, an explicit null, or an empty array. An empty
// string is a real value and does not skip.
func isEmptyValue(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return true
	case []interface{}:
		return len(value) == 0
	default:
		return false
	}
}

// deepEqual compares two values structurally via their canonical JSON
// form, so 1 and 1.0 compare equal regardless of Go's dynamic types.
func deepEqual(a, b interface{}) bool {
	aJSON, errA := json.Marshal(a)
	bJSON, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}

// toolOutput converts a tool result into a step output. Text content
// parses as JSON when possible, otherwise stays a string; an IsError
// result is a hard step error.
func toolOutput(result *mcp.CallToolResult) (interface{}, error) {
	if result == nil {
		return nil, nil
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
			continue
		}
		if data, err := json.Marshal(content); err == nil {
			parts = append(parts, string(data))
		}
	}
	text := strings.Join(parts, "\n")

	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, fmt.Errorf("%s", text)
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}
	return text, nil
}

// validateOutput checks the declared output contract: required field
// presence and primitive/array field types, compiled into a JSON schema.
func validateOutput(output interface{}, schema *api.OutputSchema) error {
	properties := make(map[string]interface{}, len(schema.Fields))
	for field, fieldType := range schema.Fields {
		properties[field] = map[string]interface{}{"type": fieldType}
	}
	doc := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(schema.Required) > 0 {
		doc["required"] = schema.Required
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(doc),
		gojsonschema.NewGoLoader(output),
	)
	if err != nil {
		return fmt.Errorf("schema evaluation failed: %w", err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(messages, "; "))
	}
	return nil
}
