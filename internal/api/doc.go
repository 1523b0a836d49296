// Package api defines the shared types and service locator for loom.
//
// It holds the workflow and task data model, the callback boundary
// supplied by the host environment (LLM generation, tool invocation,
// provider listing, event publishing), typed errors, and the handler
// registry through which packages reach each other without import
// cycles. Implementation packages register their handlers during
// startup; consumers retrieve them through the Get* accessors.
package api
