package events

import (
	"loom/internal/api"
	"loom/pkg/logging"
)

// Generator renders and publishes engine events through the host's
// optional publisher callback. Events are fire-and-forget: a nil
// publisher disables delivery entirely and publishing never fails the
// caller.
type Generator struct {
	publisher api.EventPublisher
	templates *MessageTemplateEngine
}

// NewGenerator creates an event generator over the given publisher.
// publisher may be nil.
func NewGenerator(publisher api.EventPublisher) *Generator {
	return &Generator{
		publisher: publisher,
		templates: NewMessageTemplateEngine(),
	}
}

// Publish renders the message for reason and delivers the event.
func (g *Generator) Publish(reason EventReason, data EventData) {
	if g == nil || g.publisher == nil {
		return
	}

	message := g.templates.Render(reason, data)
	logging.Debug("Events", "Publishing event: reason=%s, message=%s", string(reason), message)

	payload := map[string]interface{}{
		"message":   message,
		"eventType": string(getEventType(reason)),
	}
	if data.TaskID != "" {
		payload["taskId"] = data.TaskID
	}
	if data.WorkflowID != "" {
		payload["workflowId"] = data.WorkflowID
	}
	if data.StepName != "" {
		payload["step"] = data.StepName
	}
	if data.Error != "" {
		payload["error"] = data.Error
	}

	g.publisher.PublishEvent(string(reason), payload)
}
