// Package mesh maintains the unified tool catalog: local in-process
// leaf tools plus the cached tool index of every reachable provider.
//
// The catalog is the single name-to-tool resolution point for the
// engine. Workflow steps and the agent loop resolve tool names here,
// and every invocation routes through Catalog.Call, which dispatches to
// a local handler or the owning provider's transport.
package mesh
