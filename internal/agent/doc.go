// Package agent implements the bounded LLM agent loop behind llm steps.
//
// Each run builds a conversation from system prompt, prior history and
// the resolved step prompt, offers the model a tool set gathered by
// policy, executes the tool calls it emits, and feeds results back
// until the model answers in text or a bound trips. Bounds are the
// iteration ceiling (ending in a forced no-tools summarization turn)
// and consecutive-repeat detection of identical tool calls.
package agent
