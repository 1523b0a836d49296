package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/mesh"
	"loom/pkg/logging"
)

const summarizeInstruction = "You have reached the maximum number of tool-use iterations. " +
	"Do not call any more tools. Summarize what you have learned so far and answer now."

// Loop executes the bounded multi-turn LLM agent for llm steps.
//
// One Loop is shared across runs; per-run state lives entirely in Run.
// The loop never aborts on a tool failure: tool errors are fed back to
// the model as conversational context. The two self-enforced bounds are
// the iteration ceiling (followed by a forced summarization turn) and
// consecutive-repeat detection.
type Loop struct {
	llm     api.LLMClient
	catalog *mesh.Catalog
	meta    []api.LocalTool

	maxIterations   int
	repeatThreshold int
	maxHistoryTurns int
}

// NewLoop creates an agent loop over the given LLM client and tool
// catalog. meta holds the meta-tools injected by the discover policy.
func NewLoop(llm api.LLMClient, catalog *mesh.Catalog, meta []api.LocalTool, cfg config.EngineConfig) *Loop {
	cfg.ApplyDefaults()
	return &Loop{
		llm:             llm,
		catalog:         catalog,
		meta:            meta,
		maxIterations:   cfg.MaxAgentIterations,
		repeatThreshold: cfg.RepeatThreshold,
		maxHistoryTurns: cfg.MaxHistoryTurns,
	}
}

// RunParams carries the per-invocation configuration of one agent run.
type RunParams struct {
	// Prompt is the fully resolved prompt text
	Prompt string

	// SystemPrompt optionally prepends a system message
	SystemPrompt string

	// Model selects the model tier; empty defaults to fast
	Model api.ModelTier

	// Tools is the resolved tool policy: nil or "none", "all",
	// "discover", or an explicit name list
	Tools interface{}

	// MaxIterations overrides the engine ceiling when positive
	MaxIterations int

	// History is prior conversational context, capped to the most
	// recent engine-configured number of turns
	History []api.ChatMessage

	// OnProgress, when set, receives human-readable progress messages
	OnProgress func(text string)
}

func (p *RunParams) progress(format string, args ...interface{}) {
	if p.OnProgress != nil {
		p.OnProgress(fmt.Sprintf(format, args...))
	}
}

// Run drives the agent until it produces a final answer, hits the
// iteration ceiling or trips repeat detection. The returned Final always
// carries a non-empty response.
func (l *Loop) Run(ctx context.Context, p *RunParams) (*Final, error) {
	model := p.Model
	if model == "" {
		model = api.ModelFast
	}
	maxIterations := p.MaxIterations
	if maxIterations <= 0 {
		maxIterations = l.maxIterations
	}

	descriptors, err := l.gatherTools(ctx, p.Tools)
	if err != nil {
		return nil, err
	}
	toolDefs := make([]mcp.Tool, len(descriptors))
	byName := make(map[string]api.ToolDescriptor, len(descriptors))
	for i, d := range descriptors {
		toolDefs[i] = d.Tool
		byName[d.Tool.Name] = d
	}

	messages := buildMessages(p.SystemPrompt, p.History, p.Prompt, l.maxHistoryTurns)

	var trace []string // raw tool-result texts, the fallback answer of last resort
	lastSignature := ""
	repeats := 0

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := l.llm.Generate(ctx, model, messages, toolDefs)
		if err != nil {
			return nil, fmt.Errorf("llm call failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return ParseFinal(resp.Text), nil
		}

		messages = append(messages, toolCallMessage(resp.ToolCalls))

		for _, call := range resp.ToolCalls {
			sig := callSignature(call)
			if sig == lastSignature {
				repeats++
			} else {
				lastSignature = sig
				repeats = 1
			}
			if repeats >= l.repeatThreshold {
				logging.Warn("Agent", "Aborting: tool %s repeated %d times with identical arguments", call.Name, repeats)
				return l.stuckResult(call.Name, trace), nil
			}

			p.progress("Calling tool %s", call.Name)
			text, err := l.executeTool(ctx, byName, call)
			if err != nil {
				logging.Debug("Agent", "Tool %s failed: %v", call.Name, err)
				messages = append(messages, toolErrorMessage(call.Name, err))
				continue
			}
			trace = append(trace, text)
			messages = append(messages, toolResultMessage(call.Name, text))
		}
	}

	// Ceiling reached without a final answer: one forced summarization
	// turn with no tools attached.
	p.progress("Iteration limit reached, summarizing")
	messages = append(messages, api.ChatMessage{Role: "user", Content: summarizeInstruction})
	resp, err := l.llm.Generate(ctx, model, messages, nil)
	if err == nil && strings.TrimSpace(resp.Text) != "" {
		return ParseFinal(resp.Text), nil
	}
	if err != nil {
		logging.Warn("Agent", "Summarization call failed, falling back to raw tool results: %v", err)
	}

	return l.fallbackResult(trace), nil
}

// gatherTools resolves the tool policy to descriptors:
// nil/"none" yields no tools, "all" the full catalog, "discover" the
// full catalog plus meta-tools, and a name list resolves each entry with
// stubs for unknowns.
func (l *Loop) gatherTools(ctx context.Context, policy interface{}) ([]api.ToolDescriptor, error) {
	switch v := policy.(type) {
	case nil:
		return nil, nil
	case string:
		switch v {
		case "", "none":
			return nil, nil
		case "all":
			return l.catalog.ListAll(ctx)
		case "discover":
			all, err := l.catalog.ListAll(ctx)
			if err != nil {
				return nil, err
			}
			for _, m := range l.meta {
				all = append(all, api.ToolDescriptor{Tool: m.Tool, Local: true})
			}
			return all, nil
		default:
			// a single tool name
			return l.catalog.ResolveNames(ctx, []string{v}), nil
		}
	case []string:
		return l.catalog.ResolveNames(ctx, v), nil
	case []interface{}:
		names := make([]string, 0, len(v))
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid tool list entry %v (%T), expected string", item, item)
			}
			names = append(names, name)
		}
		return l.catalog.ResolveNames(ctx, names), nil
	default:
		return nil, fmt.Errorf("invalid tools policy %v (%T)", policy, policy)
	}
}

// executeTool runs one requested call: stubs fail, meta-tools dispatch
// to their handlers, everything else goes through the catalog.
func (l *Loop) executeTool(ctx context.Context, byName map[string]api.ToolDescriptor, call api.ToolCall) (string, error) {
	if d, offered := byName[call.Name]; offered && d.Stub {
		return "", fmt.Errorf("tool %s is not available", call.Name)
	}

	for _, m := range l.meta {
		if m.Tool.Name != call.Name {
			continue
		}
		result, err := m.Handler(ctx, call.Args)
		if err != nil {
			return "", err
		}
		if result != nil && result.IsError {
			return "", fmt.Errorf("%s", resultText(result))
		}
		return resultText(result), nil
	}

	result, err := l.catalog.Call(ctx, call.Name, call.Args)
	if err != nil {
		return "", err
	}
	if result != nil && result.IsError {
		return "", fmt.Errorf("%s", resultText(result))
	}
	return resultText(result), nil
}

// stuckResult is the partial answer produced by repeat detection.
func (l *Loop) stuckResult(toolName string, trace []string) *Final {
	response := fmt.Sprintf("Agent stopped: stuck in a loop repeatedly calling %s with identical arguments.", toolName)
	if len(trace) > 0 {
		response += "\n\nResults gathered so far:\n" + strings.Join(trace, "\n")
	}
	return &Final{Response: response}
}

// fallbackResult concatenates raw tool results when even the forced
// summarization produced nothing.
func (l *Loop) fallbackResult(trace []string) *Final {
	if len(trace) == 0 {
		return &Final{Response: "Agent reached the iteration limit without producing an answer."}
	}
	return &Final{Response: strings.Join(trace, "\n")}
}
