// Package app bootstraps the engine: it loads configuration, wires the
// task store, provider mesh, tool catalog, agent loop and orchestrator
// together, registers them with the central API layer and manages
// their lifecycle for the CLI entry points.
package app
