package events

// EventType represents the severity of an event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason represents the reason code for an event.
type EventReason string

// Task lifecycle event reasons
const (
	// ReasonTaskStarted indicates a workflow run began and its task
	// record was created.
	ReasonTaskStarted EventReason = "TaskStarted"

	// ReasonTaskCompleted indicates a task reached completed.
	ReasonTaskCompleted EventReason = "TaskCompleted"

	// ReasonTaskFailed indicates a task reached failed.
	ReasonTaskFailed EventReason = "TaskFailed"

	// ReasonTaskCancelled indicates a task was cancelled.
	ReasonTaskCancelled EventReason = "TaskCancelled"
)

// Step event reasons
const (
	// ReasonStepStarted indicates a step began executing.
	ReasonStepStarted EventReason = "StepStarted"

	// ReasonStepCompleted indicates a step committed its output.
	ReasonStepCompleted EventReason = "StepCompleted"

	// ReasonStepSkipped indicates a step's skip condition fired.
	ReasonStepSkipped EventReason = "StepSkipped"

	// ReasonStepFailed indicates a step errored.
	ReasonStepFailed EventReason = "StepFailed"

	// ReasonStepProgress carries a progress message from a running step.
	ReasonStepProgress EventReason = "StepProgress"
)

// Thread event reasons
const (
	// ReasonThreadContinued indicates a message continued a prior task's
	// conversational context.
	ReasonThreadContinued EventReason = "ThreadContinued"

	// ReasonThreadClosed indicates a conversation thread was closed.
	ReasonThreadClosed EventReason = "ThreadClosed"
)

// Workflow definition event reasons
const (
	ReasonWorkflowCreated EventReason = "WorkflowCreated"
	ReasonWorkflowUpdated EventReason = "WorkflowUpdated"
	ReasonWorkflowDeleted EventReason = "WorkflowDeleted"
)

// EventData carries the variable parts of an event message.
type EventData struct {
	// TaskID identifies the task the event belongs to
	TaskID string

	// WorkflowID names the workflow definition involved
	WorkflowID string

	// StepName names the step for step-scoped events
	StepName string

	// Message is free-form progress text
	Message string

	// Error carries the failure description for failure events
	Error string

	// StepCount is the number of steps for completion events
	StepCount int
}

// getEventType maps a reason to its severity.
func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonTaskFailed, ReasonStepFailed:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
