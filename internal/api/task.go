package api

import (
	"time"
)

// TaskStatus is the state machine for one workflow run.
//
// working is the initial state. completed, failed and cancelled are
// terminal: a task never leaves them (the threadClosed flag on a
// completed task is the single exception). input_required exists on the
// protocol surface for future interactive use and is never produced by
// the current orchestrator.
type TaskStatus string

const (
	TaskWorking       TaskStatus = "working"
	TaskInputRequired TaskStatus = "input_required"
	TaskCompleted     TaskStatus = "completed"
	TaskFailed        TaskStatus = "failed"
	TaskCancelled     TaskStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// StepStatus is the per-step execution state recorded in a task.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// ProgressMessage is one append-only entry in a step's progress log.
type ProgressMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// StepResult records the outcome of one step within a task.
type StepResult struct {
	// StepID identifies the step; results are idempotently upserted by
	// this key, with progress messages merged rather than dropped.
	StepID string `json:"stepId"`

	// StepName is the step's name in the workflow definition
	StepName string `json:"stepName"`

	// Status is the step's execution state
	Status StepStatus `json:"status"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Output holds the step's committed output, nil for skipped or
	// continueOnError-failed steps
	Output interface{} `json:"output,omitempty"`

	// Error carries the step failure message, empty on success
	Error string `json:"error,omitempty"`

	// Progress is the append-only progress-message log for this step
	Progress []ProgressMessage `json:"progress,omitempty"`
}

// ChatMessage is one turn of conversational context carried by a task.
type ChatMessage struct {
	// Role is "system", "user", "assistant" or "tool"
	Role string `json:"role"`

	// Content is the message text; tool turns carry serialized results
	Content string `json:"content"`
}

// Task is the durable record of one workflow run.
//
// A task is created when a run starts, mutated on every step transition
// and by progress callbacks, and never mutated after reaching a terminal
// status except for the ThreadClosed flag on a completed task.
type Task struct {
	// ID is generated as task_<date>_<time>_<rand>
	ID string `json:"id"`

	// WorkflowID names the workflow definition this run executed
	WorkflowID string `json:"workflowId"`

	// Status is the task state machine position
	Status TaskStatus `json:"status"`

	// WorkflowInput is the resolved input the run started with
	WorkflowInput map[string]interface{} `json:"workflowInput,omitempty"`

	// CurrentStepIndex points at the most recently started or currently
	// running step in definition order
	CurrentStepIndex int `json:"currentStepIndex"`

	// StepResults holds per-step outcomes in start order
	StepResults []StepResult `json:"stepResults,omitempty"`

	// Source and ChatID form the conversation key for thread continuation
	Source string `json:"source,omitempty"`
	ChatID string `json:"chatId,omitempty"`

	// History is prior conversational context supplied when the run
	// continued an earlier thread
	History []ChatMessage `json:"history,omitempty"`

	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`

	// TTLMs is the task's advisory time-to-live since CreatedAt; expired
	// tasks are removed by the background sweep. Zero means no expiry.
	TTLMs int64 `json:"ttl,omitempty"`

	// ThreadClosed marks a completed task ineligible for thread continuation
	ThreadClosed bool `json:"threadClosed,omitempty"`

	// Result is the final workflow output, set on completion
	Result interface{} `json:"result,omitempty"`

	// Response is the derived natural-language answer for the caller
	Response string `json:"response,omitempty"`

	// Error is the human-readable failure description, set on failure
	Error string `json:"error,omitempty"`
}

// Expired reports whether the task's TTL has elapsed at the given time.
func (t *Task) Expired(now time.Time) bool {
	if t.TTLMs <= 0 {
		return false
	}
	return now.Sub(t.CreatedAt) > time.Duration(t.TTLMs)*time.Millisecond
}

// TaskSummary is the lightweight listing view of a task.
type TaskSummary struct {
	ID            string     `json:"id"`
	WorkflowID    string     `json:"workflowId"`
	Status        TaskStatus `json:"status"`
	Source        string     `json:"source,omitempty"`
	ChatID        string     `json:"chatId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastUpdatedAt time.Time  `json:"lastUpdatedAt"`
	StepCount     int        `json:"stepCount"`
	Error         string     `json:"error,omitempty"`
}

// ListTasksRequest filters and paginates task listings.
type ListTasksRequest struct {
	// WorkflowID filters by workflow definition id when non-empty
	WorkflowID string `json:"workflowId,omitempty"`

	// Status filters by task status when non-empty
	Status TaskStatus `json:"status,omitempty"`

	// Source filters by conversation source when non-empty
	Source string `json:"source,omitempty"`

	// ChatID filters by chat id when non-empty
	ChatID string `json:"chatId,omitempty"`

	// Limit caps the page size (default 50, max 1000)
	Limit int `json:"limit,omitempty"`

	// Offset skips past earlier entries for pagination
	Offset int `json:"offset,omitempty"`
}

// ListTasksResponse is one page of task summaries, most recent first.
type ListTasksResponse struct {
	Tasks   []TaskSummary `json:"tasks"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"hasMore"`
}
