package task

import (
	"context"

	"loom/internal/api"
	"loom/pkg/logging"
)

// Adapter implements api.TaskHandler over a Store.
type Adapter struct {
	store Store
}

// NewAdapter creates the task handler adapter.
func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store}
}

// Register registers this adapter with the central API layer.
func (a *Adapter) Register() {
	api.RegisterTask(a)
}

func (a *Adapter) GetTask(ctx context.Context, id string) (*api.Task, error) {
	return a.store.Get(ctx, id)
}

func (a *Adapter) ListTasks(ctx context.Context, req *api.ListTasksRequest) (*api.ListTasksResponse, error) {
	if req == nil {
		req = &api.ListTasksRequest{}
	}
	return a.store.List(ctx, req)
}

// CancelTask flips a non-terminal task to cancelled. Terminal tasks are
// immutable, so cancelling one returns a TerminalTaskError.
func (a *Adapter) CancelTask(ctx context.Context, id string) (*api.Task, error) {
	updated, err := a.store.Update(ctx, id, func(t *api.Task) error {
		return Transition(t, api.TaskCancelled)
	})
	if err != nil {
		return nil, err
	}
	logging.Info("Task", "Cancelled task %s", id)
	return updated, nil
}

func (a *Adapter) DeleteTask(ctx context.Context, id string) error {
	return a.store.Delete(ctx, id)
}
