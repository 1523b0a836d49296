// Package provider manages connections to downstream MCP tool servers.
//
// Each provider is a subprocess spoken to over stdio, described by a
// YAML spec in the providers/ subdirectory of the configuration path.
// The Pool fronts the live connections as the mesh callbacks consumed
// by the tool catalog: provider listing and tool invocation by
// provider id.
package provider
