package api

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// OrchestratorHandler drives workflow runs and conversational messages.
type OrchestratorHandler interface {
	// RunWorkflow executes one workflow synchronously and returns its
	// terminal result. The task record persists independently.
	RunWorkflow(ctx context.Context, req *RunRequest) (*RunResult, error)

	// SendMessage routes a conversational message to a workflow,
	// transparently continuing a prior task's context within the thread
	// TTL window.
	SendMessage(ctx context.Context, req *MessageRequest) (*RunResult, error)
}

// WorkflowHandler manages workflow definitions.
type WorkflowHandler interface {
	GetWorkflow(id string) (*Workflow, error)
	ListWorkflows() []Workflow
	CreateWorkflow(wf Workflow) error
	UpdateWorkflow(id string, wf Workflow) error
	DeleteWorkflow(id string) error
	ValidateWorkflow(wf Workflow) error
}

// TaskHandler provides access to durable task records.
type TaskHandler interface {
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, req *ListTasksRequest) (*ListTasksResponse, error)

	// CancelTask flips a non-terminal task to cancelled. Cancellation is
	// cooperative: in-flight external calls are not aborted.
	CancelTask(ctx context.Context, id string) (*Task, error)

	DeleteTask(ctx context.Context, id string) error
}

// ThreadHandler implements thread continuation over task adjacency.
type ThreadHandler interface {
	// FindContinuableThread returns the most recent completed, unclosed,
	// unexpired task for the key, or nil when none qualifies.
	FindContinuableThread(ctx context.Context, source, chatID string) (*Task, error)

	// CloseThread marks the current match threadClosed so the next
	// message starts fresh. Returns false when nothing was eligible.
	CloseThread(ctx context.Context, source, chatID string) (bool, error)
}

// ToolCatalogHandler exposes the unified tool catalog.
type ToolCatalogHandler interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallToolByName(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// Handler registry variables store the registered implementations.
// These variables are protected by handlerMutex for thread-safe access.
var (
	orchestratorHandler OrchestratorHandler
	workflowHandler     WorkflowHandler
	taskHandler         TaskHandler
	threadHandler       ThreadHandler
	toolCatalogHandler  ToolCatalogHandler

	handlerMutex sync.RWMutex
)

// RegisterOrchestrator registers the orchestrator handler implementation.
// Registration is thread-safe and should happen during system startup;
// a subsequent registration replaces the previous handler.
func RegisterOrchestrator(h OrchestratorHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	orchestratorHandler = h
}

// GetOrchestrator returns the registered orchestrator handler, or nil.
func GetOrchestrator() OrchestratorHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return orchestratorHandler
}

// RegisterWorkflow registers the workflow definition handler implementation.
func RegisterWorkflow(h WorkflowHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	workflowHandler = h
}

// GetWorkflow returns the registered workflow handler, or nil.
func GetWorkflow() WorkflowHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return workflowHandler
}

// RegisterTask registers the task store handler implementation.
func RegisterTask(h TaskHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	taskHandler = h
}

// GetTask returns the registered task handler, or nil.
func GetTask() TaskHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return taskHandler
}

// RegisterThread registers the thread manager handler implementation.
func RegisterThread(h ThreadHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	threadHandler = h
}

// GetThread returns the registered thread handler, or nil.
func GetThread() ThreadHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return threadHandler
}

// RegisterToolCatalog registers the tool catalog handler implementation.
func RegisterToolCatalog(h ToolCatalogHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	toolCatalogHandler = h
}

// GetToolCatalog returns the registered tool catalog handler, or nil.
func GetToolCatalog() ToolCatalogHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return toolCatalogHandler
}
