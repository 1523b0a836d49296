package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"loom/internal/api"
	"loom/internal/config"
	"loom/pkg/logging"
)

// Store defines the persistence contract for task records.
//
// Access is by id only; listing is a full scan plus filter, which is
// acceptable at the expected task volumes. Every concurrent writer
// treats the store as keyed by task id, so no cross-task locking is
// required.
type Store interface {
	// Create persists a new task record
	Create(ctx context.Context, t *api.Task) error

	// Get retrieves a task by id
	Get(ctx context.Context, id string) (*api.Task, error)

	// Update applies mutate to the stored record and persists the
	// result. LastUpdatedAt is bumped on every successful update.
	Update(ctx context.Context, id string, mutate func(*api.Task) error) (*api.Task, error)

	// Delete removes a task record
	Delete(ctx context.Context, id string) error

	// List returns paginated task summaries, most recent first
	List(ctx context.Context, req *api.ListTasksRequest) (*api.ListTasksResponse, error)

	// DeleteExpired removes every task whose TTL has elapsed at now and
	// returns how many were removed
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// FileStore implements Store over config.Storage, one JSON document per
// task under the "tasks" entity type.
type FileStore struct {
	storage *config.Storage
	mu      sync.RWMutex
}

// NewFileStore creates a task store rooted at the given config path.
func NewFileStore(configPath string) *FileStore {
	if configPath == "" {
		panic("logic error: empty task store configPath")
	}
	return &FileStore{
		storage: config.NewStorageWithPath(configPath, config.FormatJSON),
	}
}

// Create persists a new task record.
func (fs *FileStore) Create(ctx context.Context, t *api.Task) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.save(t)
}

// Get retrieves a task by id.
func (fs *FileStore) Get(ctx context.Context, id string) (*api.Task, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.load(id)
}

// Update reloads the record, applies mutate and saves the result.
func (fs *FileStore) Update(ctx context.Context, id string, mutate func(*api.Task) error) (*api.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	t, err := fs.load(id)
	if err != nil {
		return nil, err
	}

	if err := mutate(t); err != nil {
		return nil, err
	}

	t.LastUpdatedAt = time.Now()
	if err := fs.save(t); err != nil {
		return nil, err
	}

	return t, nil
}

// Delete removes a task record.
func (fs *FileStore) Delete(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.storage.Delete("tasks", id); err != nil {
		return api.NewTaskNotFoundError(id)
	}
	return nil
}

// List scans all task records and returns a filtered, paginated page of
// summaries sorted by LastUpdatedAt descending.
func (fs *FileStore) List(ctx context.Context, req *api.ListTasksRequest) (*api.ListTasksResponse, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	ids, err := fs.storage.List("tasks")
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var filtered []api.TaskSummary
	for _, id := range ids {
		t, err := fs.load(id)
		if err != nil {
			logging.Warn("TaskStore", "Failed to load task %s for listing: %v", id, err)
			continue
		}

		if req.WorkflowID != "" && t.WorkflowID != req.WorkflowID {
			continue
		}
		if req.Status != "" && t.Status != req.Status {
			continue
		}
		if req.Source != "" && t.Source != req.Source {
			continue
		}
		if req.ChatID != "" && t.ChatID != req.ChatID {
			continue
		}

		filtered = append(filtered, Summary(t))
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].LastUpdatedAt.After(filtered[j].LastUpdatedAt)
	})

	total := len(filtered)

	var page []api.TaskSummary
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = filtered[offset:end]
	}

	return &api.ListTasksResponse{
		Tasks:   page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(page) < total,
	}, nil
}

// DeleteExpired removes every task whose TTL has elapsed at now.
func (fs *FileStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ids, err := fs.storage.List("tasks")
	if err != nil {
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	removed := 0
	for _, id := range ids {
		t, err := fs.load(id)
		if err != nil {
			continue
		}
		if !t.Expired(now) {
			continue
		}
		if err := fs.storage.Delete("tasks", id); err != nil {
			logging.Warn("TaskStore", "Failed to delete expired task %s: %v", id, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logging.Info("TaskStore", "Removed %d expired tasks", removed)
	}
	return removed, nil
}

func (fs *FileStore) load(id string) (*api.Task, error) {
	data, err := fs.storage.Load("tasks", id)
	if err != nil {
		return nil, api.NewTaskNotFoundError(id)
	}

	var t api.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return &t, nil
}

func (fs *FileStore) save(t *api.Task) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", t.ID, err)
	}
	if err := fs.storage.Save("tasks", t.ID, data); err != nil {
		return fmt.Errorf("failed to save task %s: %w", t.ID, err)
	}
	return nil
}
