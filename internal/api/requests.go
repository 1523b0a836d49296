package api

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// RunRequest starts one workflow run.
type RunRequest struct {
	// WorkflowID names the definition to execute
	WorkflowID string `json:"workflowId"`

	// Input is the caller-supplied workflow input
	Input map[string]interface{} `json:"input,omitempty"`

	// Source and ChatID form the conversation key recorded on the task
	Source string `json:"source,omitempty"`
	ChatID string `json:"chatId,omitempty"`

	// History optionally seeds conversational context, normally supplied
	// by the thread manager when continuing an earlier task
	History []ChatMessage `json:"history,omitempty"`

	// TTLMs sets the created task's time-to-live; zero means no expiry
	TTLMs int64 `json:"ttl,omitempty"`
}

// RunResult is the outcome of one workflow run.
type RunResult struct {
	// TaskID identifies the durable task record for this run
	TaskID string `json:"taskId"`

	// Status is the task's terminal status
	Status TaskStatus `json:"status"`

	// Output is the final workflow output
	Output interface{} `json:"output,omitempty"`

	// Response is the derived natural-language answer
	Response string `json:"response,omitempty"`

	// Error is the failure description when Status is failed
	Error string `json:"error,omitempty"`
}

// MessageRequest sends one conversational message, transparently
// continuing the most recent eligible task for the (source, chat) key.
type MessageRequest struct {
	// WorkflowID names the workflow that handles the message
	WorkflowID string `json:"workflowId"`

	// Message is the user's message text
	Message string `json:"message"`

	// Source and ChatID form the conversation key
	Source string `json:"source"`
	ChatID string `json:"chatId"`

	// Input optionally carries extra workflow input alongside the message
	Input map[string]interface{} `json:"input,omitempty"`
}

// ToolDescriptor describes one callable tool as known to the catalog.
type ToolDescriptor struct {
	// Tool is the MCP tool definition (name, description, input schema)
	Tool mcp.Tool `json:"tool"`

	// ProviderID names the mesh provider exposing the tool; empty for
	// local leaf tools and meta-tools
	ProviderID string `json:"providerId,omitempty"`

	// Local marks in-process leaf tools
	Local bool `json:"local,omitempty"`

	// Stub marks a placeholder created for an unresolvable explicit
	// tool-list entry
	Stub bool `json:"stub,omitempty"`
}
