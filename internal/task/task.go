package task

import (
	"fmt"
	"strings"
	"time"

	"loom/internal/api"

	"github.com/google/uuid"
)

// GenerateID produces a task identifier of the form
// task_<date>_<time>_<rand>, e.g. task_20260829_153012_a1b2c3.
func GenerateID(now time.Time) string {
	rand := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("task_%s_%s_%s", now.Format("20060102"), now.Format("150405"), rand)
}

// New creates a fresh task record in the working state.
func New(req *api.RunRequest, now time.Time) *api.Task {
	return &api.Task{
		ID:            GenerateID(now),
		WorkflowID:    req.WorkflowID,
		Status:        api.TaskWorking,
		WorkflowInput: req.Input,
		Source:        req.Source,
		ChatID:        req.ChatID,
		History:       req.History,
		CreatedAt:     now,
		LastUpdatedAt: now,
		TTLMs:         req.TTLMs,
	}
}

// Transition moves the task to a new status, rejecting transitions out
// of a terminal state. LastUpdatedAt is bumped by the store on save.
func Transition(t *api.Task, to api.TaskStatus) error {
	if t.Status.Terminal() {
		return &api.TerminalTaskError{TaskID: t.ID, Status: t.Status}
	}
	t.Status = to
	return nil
}

// UpsertStepResult records a step outcome, keyed by StepID. Re-running a
// step preserves previously recorded progress messages: the existing log
// and the incoming one are merged by (timestamp, text) identity, never
// silently dropped.
func UpsertStepResult(t *api.Task, result api.StepResult) {
	for i := range t.StepResults {
		if t.StepResults[i].StepID == result.StepID {
			result.Progress = mergeProgress(t.StepResults[i].Progress, result.Progress)
			t.StepResults[i] = result
			return
		}
	}
	t.StepResults = append(t.StepResults, result)
}

// AppendProgress adds one message to the step's progress log without
// touching its status. Unknown step ids are ignored.
func AppendProgress(t *api.Task, stepID, text string, now time.Time) {
	for i := range t.StepResults {
		if t.StepResults[i].StepID == stepID {
			t.StepResults[i].Progress = append(t.StepResults[i].Progress, api.ProgressMessage{
				Timestamp: now,
				Text:      text,
			})
			return
		}
	}
}

// mergeProgress unions two progress logs, deduplicating on
// (timestamp, text) and keeping chronological order.
func mergeProgress(existing, incoming []api.ProgressMessage) []api.ProgressMessage {
	seen := make(map[string]bool, len(existing))
	key := func(m api.ProgressMessage) string {
		return m.Timestamp.UTC().Format(time.RFC3339Nano) + "\x00" + m.Text
	}

	merged := make([]api.ProgressMessage, 0, len(existing)+len(incoming))
	for _, m := range existing {
		seen[key(m)] = true
		merged = append(merged, m)
	}
	for _, m := range incoming {
		if !seen[key(m)] {
			seen[key(m)] = true
			merged = append(merged, m)
		}
	}

	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && merged[j].Timestamp.Before(merged[j-1].Timestamp); j-- {
			merged[j], merged[j-1] = merged[j-1], merged[j]
		}
	}

	return merged
}

// Summary converts a full task to its listing view.
func Summary(t *api.Task) api.TaskSummary {
	return api.TaskSummary{
		ID:            t.ID,
		WorkflowID:    t.WorkflowID,
		Status:        t.Status,
		Source:        t.Source,
		ChatID:        t.ChatID,
		CreatedAt:     t.CreatedAt,
		LastUpdatedAt: t.LastUpdatedAt,
		StepCount:     len(t.StepResults),
		Error:         t.Error,
	}
}
