package events

import (
	"bytes"
	"fmt"
	"text/template"
)

// MessageTemplateEngine provides dynamic message generation for events.
type MessageTemplateEngine struct {
	templates map[EventReason]string
}

// NewMessageTemplateEngine creates a new message template engine with
// default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	// Task lifecycle
	e.templates[ReasonTaskStarted] = "Task {{.TaskID}} started for workflow {{.WorkflowID}}"
	e.templates[ReasonTaskCompleted] = "Task {{.TaskID}} completed successfully{{if .StepCount}} ({{.StepCount}} steps){{end}}"
	e.templates[ReasonTaskFailed] = "Task {{.TaskID}} failed{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonTaskCancelled] = "Task {{.TaskID}} was cancelled"

	// Steps
	e.templates[ReasonStepStarted] = "Step {{.StepName}} started"
	e.templates[ReasonStepCompleted] = "Step {{.StepName}} completed"
	e.templates[ReasonStepSkipped] = "Step {{.StepName}} skipped"
	e.templates[ReasonStepFailed] = "Step {{.StepName}} failed{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonStepProgress] = "{{.Message}}"

	// Threads
	e.templates[ReasonThreadContinued] = "Continuing conversation from task {{.TaskID}}"
	e.templates[ReasonThreadClosed] = "Thread closed for task {{.TaskID}}"

	// Workflow definitions
	e.templates[ReasonWorkflowCreated] = "Workflow {{.WorkflowID}} created"
	e.templates[ReasonWorkflowUpdated] = "Workflow {{.WorkflowID}} updated"
	e.templates[ReasonWorkflowDeleted] = "Workflow {{.WorkflowID}} deleted"
}

// Render produces the message for a reason from its template. Unknown
// reasons and template errors fall back to a generic message rather
// than failing.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	tmplText, ok := e.templates[reason]
	if !ok {
		return fmt.Sprintf("%s (task=%s, workflow=%s)", reason, data.TaskID, data.WorkflowID)
	}

	tmpl, err := template.New(string(reason)).Parse(tmplText)
	if err != nil {
		return fmt.Sprintf("%s (task=%s)", reason, data.TaskID)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("%s (task=%s)", reason, data.TaskID)
	}
	return buf.String()
}
