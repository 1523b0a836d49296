package agent

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"loom/internal/api"
)

// buildMessages assembles the initial conversation for one run: the
// optional system prompt, the most recent maxHistory turns of prior
// context, then the resolved prompt as the user turn.
func buildMessages(systemPrompt string, history []api.ChatMessage, prompt string, maxHistory int) []api.ChatMessage {
	messages := make([]api.ChatMessage, 0, len(history)+2)

	if systemPrompt != "" {
		messages = append(messages, api.ChatMessage{Role: "system", Content: systemPrompt})
	}

	if maxHistory > 0 && len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	messages = append(messages, history...)

	return append(messages, api.ChatMessage{Role: "user", Content: prompt})
}

// toolCallMessage records the assistant's tool-call turn as structured
// content so the model sees its own prior calls on the next iteration.
func toolCallMessage(calls []api.ToolCall) api.ChatMessage {
	data, err := json.Marshal(map[string]interface{}{"toolCalls": calls})
	if err != nil {
		data = []byte(fmt.Sprintf("requested %d tool calls", len(calls)))
	}
	return api.ChatMessage{Role: "assistant", Content: string(data)}
}

// toolResultMessage wraps one tool outcome as conversational context.
func toolResultMessage(name, text string) api.ChatMessage {
	return api.ChatMessage{
		Role:    "tool",
		Content: fmt.Sprintf("Result of %s: %s", name, text),
	}
}

// toolErrorMessage feeds a tool failure back as context. Errors inside
// the loop never abort it.
func toolErrorMessage(name string, err error) api.ChatMessage {
	return api.ChatMessage{
		Role:    "tool",
		Content: fmt.Sprintf("Error from %s: %v", name, err),
	}
}

// resultText flattens a tool result's content blocks into plain text.
func resultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
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

	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}

// callSignature canonicalizes one tool call for repeat detection. Two
// calls with the same name and deep-equal arguments share a signature.
func callSignature(call api.ToolCall) string {
	args, err := json.Marshal(call.Args)
	if err != nil {
		args = []byte(fmt.Sprintf("%v", call.Args))
	}
	return call.Name + "\x00" + string(args)
}
