package api

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// This file defines the callback boundary supplied by the host
// environment. The execution core performs no I/O of its own beyond task
// persistence; every external effect flows through these interfaces.

// ToolCall is one tool invocation requested by the LLM in a single turn.
type ToolCall struct {
	// ID correlates the call with its result message
	ID string `json:"id,omitempty"`

	// Name is the tool name as offered in the tool definitions
	Name string `json:"name"`

	// Args is the parsed argument object
	Args map[string]interface{} `json:"args,omitempty"`
}

// LLMResponse is the outcome of a single non-streaming generation turn.
// Exactly one of Text / ToolCalls is expected to be meaningful; a turn
// with no tool calls terminates the agent loop.
type LLMResponse struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// LLMClient performs one generation turn against the host's model.
type LLMClient interface {
	// Generate calls the LLM with the current message list and tool
	// definitions and returns its reply. Implementations should honor
	// ctx cancellation; the engine does not abort in-flight calls itself.
	Generate(ctx context.Context, model ModelTier, messages []ChatMessage, tools []mcp.Tool) (*LLMResponse, error)
}

// ToolCaller invokes one remote mesh tool on a provider.
//
// Implementations must surface both transport errors and tool-reported
// IsError results as failures visible to the caller.
type ToolCaller interface {
	CallTool(ctx context.Context, providerID string, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// ProviderInfo describes one reachable tool provider and its catalog.
type ProviderInfo struct {
	ID    string     `json:"id"`
	Title string     `json:"title,omitempty"`
	Tools []mcp.Tool `json:"tools"`
}

// ProviderLister enumerates currently reachable tool providers.
type ProviderLister interface {
	ListProviders(ctx context.Context) ([]ProviderInfo, error)
}

// EventPublisher delivers fire-and-forget notifications about task
// progress and completion to whatever transports responses to the end
// user. Optional; a nil publisher disables events.
type EventPublisher interface {
	PublishEvent(eventType string, data map[string]interface{})
}

// LocalToolHandler executes one local leaf tool (TTS, shell, file access
// and similar capabilities registered by the host process).
type LocalToolHandler func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error)

// LocalTool pairs a tool definition with its in-process handler.
type LocalTool struct {
	Tool    mcp.Tool
	Handler LocalToolHandler
}
