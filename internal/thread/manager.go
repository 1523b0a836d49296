package thread

import (
	"context"
	"time"

	"loom/internal/api"
	"loom/internal/events"
	"loom/internal/task"
	"loom/pkg/logging"
)

// Manager implements thread continuation over task adjacency.
//
// A thread is not a stored entity: it is the chain of tasks sharing a
// (source, chatId) key within a time window. The most recent completed,
// unclosed, unexpired task for the key is the thread's continuation
// point. Concurrent messages from the same chat may race to the same
// continuation point; the most-recent-task heuristic accepts that
// ambiguity.
type Manager struct {
	store  task.Store
	events *events.Generator

	// ttl is the continuation window measured against lastUpdatedAt
	ttl time.Duration

	// maxTurns caps the rebuilt conversation history
	maxTurns int
}

// NewManager creates a thread manager over the task store.
func NewManager(store task.Store, eventGen *events.Generator, ttl time.Duration, maxTurns int) *Manager {
	return &Manager{store: store, events: eventGen, ttl: ttl, maxTurns: maxTurns}
}

// Register registers this manager with the central API layer.
func (m *Manager) Register() {
	api.RegisterThread(m)
}

// FindContinuableThread returns the most recent completed, unclosed
// task for the key whose lastUpdatedAt is within the TTL window, or nil
// when none qualifies. TTL expiry is evaluated lazily on every lookup.
func (m *Manager) FindContinuableThread(ctx context.Context, source, chatID string) (*api.Task, error) {
	if source == "" || chatID == "" {
		return nil, nil
	}

	resp, err := m.store.List(ctx, &api.ListTasksRequest{
		Source: source,
		ChatID: chatID,
		Status: api.TaskCompleted,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, summary := range resp.Tasks {
		if now.Sub(summary.LastUpdatedAt) > m.ttl {
			// summaries are most-recent-first, everything after this
			// one is older still
			return nil, nil
		}

		t, err := m.store.Get(ctx, summary.ID)
		if err != nil {
			logging.Warn("Thread", "Failed to load candidate task %s: %v", summary.ID, err)
			continue
		}
		if t.ThreadClosed {
			continue
		}

		logging.Debug("Thread", "Continuing thread %s/%s from task %s", source, chatID, t.ID)
		return t, nil
	}
	return nil, nil
}

// CloseThread marks the current continuation point threadClosed so the
// next message starts a fresh task. Returns false when nothing was
// eligible. This is the single permitted mutation of a terminal task.
func (m *Manager) CloseThread(ctx context.Context, source, chatID string) (bool, error) {
	t, err := m.FindContinuableThread(ctx, source, chatID)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}

	_, err = m.store.Update(ctx, t.ID, func(t *api.Task) error {
		t.ThreadClosed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	logging.Info("Thread", "Closed thread %s/%s at task %s", source, chatID, t.ID)
	m.events.Publish(events.ReasonThreadClosed, events.EventData{
		TaskID:     t.ID,
		WorkflowID: t.WorkflowID,
	})
	return true, nil
}

// BuildHistory rebuilds the conversation carried into a continued run:
// the prior task's own stored history, its original user message and
// its final assistant response, capped to the most recent turns.
func (m *Manager) BuildHistory(t *api.Task) []api.ChatMessage {
	if t == nil {
		return nil
	}

	history := make([]api.ChatMessage, 0, len(t.History)+2)
	history = append(history, t.History...)

	if message, ok := t.WorkflowInput["message"].(string); ok && message != "" {
		history = append(history, api.ChatMessage{Role: "user", Content: message})
	}
	if t.Response != "" {
		history = append(history, api.ChatMessage{Role: "assistant", Content: t.Response})
	}

	if m.maxTurns > 0 && len(history) > m.maxTurns {
		history = history[len(history)-m.maxTurns:]
	}
	return history
}
