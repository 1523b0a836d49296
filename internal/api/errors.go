package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a resource not found error with contextual
// information. It is the standard error type for lookups of workflows,
// tasks, tools and providers across the API surface.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "workflow", "task", "tool", "provider")
	ResourceType string

	// ResourceName is the specific identifier that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewWorkflowNotFoundError creates a NotFoundError for a workflow.
func NewWorkflowNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ResourceType: "workflow", ResourceName: id}
}

// NewTaskNotFoundError creates a NotFoundError for a task.
func NewTaskNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ResourceType: "task", ResourceName: id}
}

// NewToolNotFoundError creates a NotFoundError for a tool.
func NewToolNotFoundError(name string) *NotFoundError {
	return &NotFoundError{ResourceType: "tool", ResourceName: name}
}

// NewProviderNotFoundError creates a NotFoundError for a mesh provider.
func NewProviderNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ResourceType: "provider", ResourceName: id}
}

// TerminalTaskError indicates an operation attempted against a task that
// has already reached a terminal status.
type TerminalTaskError struct {
	TaskID string
	Status TaskStatus
}

func (e *TerminalTaskError) Error() string {
	return fmt.Sprintf("task %s is already %s", e.TaskID, e.Status)
}

// IsTerminalTask checks if an error is a TerminalTaskError.
func IsTerminalTask(err error) bool {
	var terminalErr *TerminalTaskError
	return errors.As(err, &terminalErr)
}
