package metatools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"loom/internal/api"
)

// Provider offers the fixed set of meta-tools injected into agent runs
// by the discover tool policy. Meta-tools let the model inspect and
// drive the engine itself: list and start workflows, browse the tool
// catalog, and manage background tasks and conversation threads.
//
// The provider is stateless; every handler resolves its backing service
// through the API layer at call time.
type Provider struct{}

// NewProvider creates a new meta-tools provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Tools returns every meta-tool with its definition and handler.
func (p *Provider) Tools() []api.LocalTool {
	return []api.LocalTool{
		{
			Tool: mcp.NewTool("list_workflows",
				mcp.WithDescription("List all available workflow definitions"),
			),
			Handler: p.handleListWorkflows,
		},
		{
			Tool: mcp.NewTool("start_workflow",
				mcp.WithDescription("Start a workflow as a background task and return its result"),
				mcp.WithString("workflow",
					mcp.Required(),
					mcp.Description("ID of the workflow to start"),
				),
				mcp.WithObject("input",
					mcp.Description("Workflow input object"),
				),
			),
			Handler: p.handleStartWorkflow,
		},
		{
			Tool: mcp.NewTool("list_tools",
				mcp.WithDescription("List every callable tool in the catalog"),
			),
			Handler: p.handleListTools,
		},
		{
			Tool: mcp.NewTool("call_tool",
				mcp.WithDescription("Call an arbitrary catalog tool by name"),
				mcp.WithString("name",
					mcp.Required(),
					mcp.Description("Name of the tool to call"),
				),
				mcp.WithObject("args",
					mcp.Description("Arguments to pass to the tool"),
				),
			),
			Handler: p.handleCallTool,
		},
		{
			Tool: mcp.NewTool("list_tasks",
				mcp.WithDescription("List background tasks, most recent first"),
				mcp.WithString("workflow",
					mcp.Description("Filter by workflow ID"),
				),
				mcp.WithString("status",
					mcp.Description("Filter by task status (working, completed, failed, cancelled)"),
				),
				mcp.WithNumber("limit",
					mcp.Description("Maximum number of tasks to return"),
				),
			),
			Handler: p.handleListTasks,
		},
		{
			Tool: mcp.NewTool("check_task",
				mcp.WithDescription("Get the full record of one background task"),
				mcp.WithString("id",
					mcp.Required(),
					mcp.Description("Task ID"),
				),
			),
			Handler: p.handleCheckTask,
		},
		{
			Tool: mcp.NewTool("delete_task",
				mcp.WithDescription("Delete one background task record"),
				mcp.WithString("id",
					mcp.Required(),
					mcp.Description("Task ID"),
				),
			),
			Handler: p.handleDeleteTask,
		},
		{
			Tool: mcp.NewTool("close_thread",
				mcp.WithDescription("Close the current conversation thread so the next message starts fresh"),
				mcp.WithString("source",
					mcp.Required(),
					mcp.Description("Conversation source"),
				),
				mcp.WithString("chatId",
					mcp.Required(),
					mcp.Description("Chat identifier within the source"),
				),
			),
			Handler: p.handleCloseThread,
		},
	}
}
