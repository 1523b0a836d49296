// Package server exposes the engine's command surface as MCP tools over
// stdio: workflow runs, conversational messaging with thread
// continuation, task inspection and cancellation, workflow management
// and inbound event routing. Handlers resolve the engine's subsystems
// through the central API layer at call time.
package server
