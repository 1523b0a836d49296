package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/api"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(t.TempDir())
}

func TestFileStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tk := New(&api.RunRequest{WorkflowID: "triage", Source: "api"}, time.Now())
	require.NoError(t, store.Create(ctx, tk))

	loaded, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, loaded.ID)
	assert.Equal(t, "triage", loaded.WorkflowID)
	assert.Equal(t, api.TaskWorking, loaded.Status)
}

func TestFileStore_GetUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "task_20260829_000000_nope00")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestFileStore_Update(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tk := New(&api.RunRequest{WorkflowID: "triage"}, time.Now())
	require.NoError(t, store.Create(ctx, tk))

	updated, err := store.Update(ctx, tk.ID, func(t *api.Task) error {
		UpsertStepResult(t, api.StepResult{StepID: "fetch", Status: api.StepCompleted})
		return Transition(t, api.TaskCompleted)
	})
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, updated.Status)
	require.Len(t, updated.StepResults, 1)

	// the mutation must be durable, not just in the returned copy
	reloaded, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, reloaded.Status)
	require.Len(t, reloaded.StepResults, 1)
}

func TestFileStore_UpdateRejectsTerminalTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tk := New(&api.RunRequest{WorkflowID: "triage"}, time.Now())
	tk.Status = api.TaskCompleted
	require.NoError(t, store.Create(ctx, tk))

	_, err := store.Update(ctx, tk.ID, func(t *api.Task) error {
		return Transition(t, api.TaskCancelled)
	})
	require.Error(t, err)
	assert.True(t, api.IsTerminalTask(err))

	reloaded, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, reloaded.Status)
}

func TestFileStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tk := New(&api.RunRequest{WorkflowID: "triage"}, time.Now())
	require.NoError(t, store.Create(ctx, tk))
	require.NoError(t, store.Delete(ctx, tk.ID))

	_, err := store.Get(ctx, tk.ID)
	assert.True(t, api.IsNotFound(err))
}

func TestFileStore_ListFiltersAndSorts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	mk := func(workflowID, source string, status api.TaskStatus, updated time.Time) *api.Task {
		tk := New(&api.RunRequest{WorkflowID: workflowID, Source: source}, base)
		tk.Status = status
		tk.LastUpdatedAt = updated
		require.NoError(t, store.Create(ctx, tk))
		return tk
	}

	old := mk("triage", "slack", api.TaskCompleted, base.Add(time.Minute))
	newer := mk("triage", "slack", api.TaskFailed, base.Add(2*time.Minute))
	mk("deploy", "api", api.TaskCompleted, base.Add(3*time.Minute))

	resp, err := store.List(ctx, &api.ListTasksRequest{WorkflowID: "triage"})
	require.NoError(t, err)
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, newer.ID, resp.Tasks[0].ID, "most recently updated first")
	assert.Equal(t, old.ID, resp.Tasks[1].ID)
	assert.Equal(t, 2, resp.Total)
	assert.False(t, resp.HasMore)

	resp, err = store.List(ctx, &api.ListTasksRequest{Status: api.TaskFailed})
	require.NoError(t, err)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, newer.ID, resp.Tasks[0].ID)
}

func TestFileStore_ListPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		tk := New(&api.RunRequest{WorkflowID: "triage"}, base)
		tk.LastUpdatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Create(ctx, tk))
	}

	resp, err := store.List(ctx, &api.ListTasksRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Tasks, 2)
	assert.Equal(t, 5, resp.Total)
	assert.True(t, resp.HasMore)

	resp, err = store.List(ctx, &api.ListTasksRequest{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, resp.Tasks, 1)
	assert.False(t, resp.HasMore)
}

func TestFileStore_DeleteExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	expiring := New(&api.RunRequest{WorkflowID: "triage", TTLMs: 1000}, now)
	require.NoError(t, store.Create(ctx, expiring))

	persistent := New(&api.RunRequest{WorkflowID: "triage"}, now)
	require.NoError(t, store.Create(ctx, persistent))

	// just before the deadline nothing is removed
	removed, err := store.DeleteExpired(ctx, now.Add(999*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// just past the deadline the TTL task goes, the zero-TTL one stays
	removed, err = store.DeleteExpired(ctx, now.Add(1001*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, expiring.ID)
	assert.True(t, api.IsNotFound(err))

	_, err = store.Get(ctx, persistent.ID)
	assert.NoError(t, err)
}

func TestAdapter_CancelTask(t *testing.T) {
	store := newTestStore(t)
	adapter := NewAdapter(store)
	ctx := context.Background()

	tk := New(&api.RunRequest{WorkflowID: "triage"}, time.Now())
	require.NoError(t, store.Create(ctx, tk))

	cancelled, err := adapter.CancelTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, api.TaskCancelled, cancelled.Status)

	// cancelling again hits the terminal guard
	_, err = adapter.CancelTask(ctx, tk.ID)
	require.Error(t, err)
	assert.True(t, api.IsTerminalTask(err))
}

func TestSweeper_SweepOnce(t *testing.T) {
	store := newTestStore(t)
	sweeper := NewSweeper(store, time.Minute)
	ctx := context.Background()

	tk := New(&api.RunRequest{WorkflowID: "triage", TTLMs: 1}, time.Now().Add(-time.Second))
	require.NoError(t, store.Create(ctx, tk))

	removed, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
