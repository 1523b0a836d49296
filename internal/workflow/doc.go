// Package workflow is the execution core: definition management, the
// step dispatcher and the run orchestrator.
//
// The Manager loads and validates YAML workflow definitions and serves
// CRUD over them. The Orchestrator drives one run: it levels the steps
// by their reference dependencies, executes each level concurrently,
// persists every transition to the task store and derives the final
// output and response. The Dispatcher executes a single step, routing
// between direct tool calls, registered code transforms, string
// templates and the LLM agent loop.
package workflow
