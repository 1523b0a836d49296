package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"loom/internal/api"
	"loom/internal/metatools"
	"loom/pkg/logging"
)

// Server exposes the engine's command surface as MCP tools over stdio.
// The surface is the meta-tool set plus the operations a host front end
// needs beyond what agents get: conversational messaging, task
// cancellation, workflow management and inbound event routing.
type Server struct {
	mcpServer *server.MCPServer
}

// New creates the command-surface server. Handlers are resolved through
// the central API layer at call time, so the server can be constructed
// before the engine's subsystems register.
func New(version string) *Server {
	mcpServer := server.NewMCPServer(
		"loom",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{mcpServer: mcpServer}
	s.registerTools()
	return s
}

// Start serves MCP over stdio until the transport closes.
func (s *Server) Start(ctx context.Context) error {
	logging.Info("Server", "Serving command surface over stdio")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	// The agent meta-tool set doubles as the base command surface.
	for _, lt := range metatools.NewProvider().Tools() {
		s.addLocalTool(lt)
	}

	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a conversational message to a workflow, continuing the active thread for the conversation when one exists."),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow id that handles the message")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message text")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Conversation source, e.g. slack")),
		mcp.WithString("chatId", mcp.Required(), mcp.Description("Conversation id within the source")),
		mcp.WithObject("input", mcp.Description("Extra workflow input merged alongside the message")),
	), s.handleSendMessage)

	s.mcpServer.AddTool(mcp.NewTool("cancel_task",
		mcp.WithDescription("Cancel a running task. Cancellation is cooperative; in-flight calls finish."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
	), s.handleCancelTask)

	s.mcpServer.AddTool(mcp.NewTool("get_workflow",
		mcp.WithDescription("Get one workflow definition."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
	), s.handleGetWorkflow)

	s.mcpServer.AddTool(mcp.NewTool("create_workflow",
		mcp.WithDescription("Create a workflow definition from a JSON document."),
		mcp.WithObject("workflow", mcp.Required(), mcp.Description("The workflow definition")),
	), s.handleCreateWorkflow)

	s.mcpServer.AddTool(mcp.NewTool("validate_workflow",
		mcp.WithDescription("Validate a workflow definition without persisting it."),
		mcp.WithObject("workflow", mcp.Required(), mcp.Description("The workflow definition")),
	), s.handleValidateWorkflow)

	s.mcpServer.AddTool(mcp.NewTool("delete_workflow",
		mcp.WithDescription("Delete a custom workflow definition."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
	), s.handleDeleteWorkflow)

	s.mcpServer.AddTool(mcp.NewTool("route_events",
		mcp.WithDescription("Route a batch of inbound events, starting the named workflow for each event."),
		mcp.WithArray("events", mcp.Required(), mcp.Description("Events, each {workflow, input}")),
	), s.handleRouteEvents)
}

// addLocalTool adapts a LocalTool handler to the mcp-go server handler
// signature.
func (s *Server) addLocalTool(lt api.LocalTool) {
	handler := lt.Handler
	s.mcpServer.AddTool(lt.Tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handler(ctx, request.GetArguments())
	})
}
