package provider

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Spec describes one downstream MCP tool provider: a subprocess spoken
// to over stdio. Specs are loaded from YAML files in the providers/
// subdirectory of the configuration path.
type Spec struct {
	// Name identifies the provider inside the mesh; tool calls pinned to
	// a connectionId use this name
	Name string `yaml:"name" json:"name"`

	// Command is the executable to launch
	Command string `yaml:"command" json:"command"`

	// Args are passed to the command
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env is extra environment for the subprocess
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Validate checks the spec for the fields a connection needs.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("provider spec missing name")
	}
	if s.Command == "" {
		return fmt.Errorf("provider %s missing command", s.Name)
	}
	return nil
}

// Client is one live connection to a downstream MCP server.
type Client interface {
	// Initialize establishes the connection and performs the MCP
	// protocol handshake
	Initialize(ctx context.Context) error

	// ListTools returns all tools the server exposes
	ListTools(ctx context.Context) ([]mcp.Tool, error)

	// CallTool executes one tool on the server
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)

	// Close shuts the connection down
	Close() error
}
