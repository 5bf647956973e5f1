package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.TaskRepository.
type Repository struct {
	tasks  map[model.TaskID]model.TaskRecord
	mu     sync.RWMutex
	logger log.Logger
}

var _ storage.TaskRepository = &Repository{}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  make(map[model.TaskID]model.TaskRecord),
		logger: cfg.Logger,
	}, nil
}

// CreateTask stores a new task.
func (r *Repository) CreateTask(ctx context.Context, t model.TaskRecord) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w: %w", model.ErrNotValid, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
	}

	r.tasks[t.ID] = cloneRecord(t)
	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id model.TaskID) (*model.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	t = cloneRecord(t)
	return &t, nil
}

// ListTasks returns the tasks, newest first.
func (r *Repository) ListTasks(ctx context.Context, limit int) ([]model.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.TaskRecord, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, cloneRecord(t))
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].SubmittedAt.Equal(tasks[j].SubmittedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].SubmittedAt.After(tasks[j].SubmittedAt)
	})

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	return tasks, nil
}

// UpdateTask updates an existing task.
func (r *Repository) UpdateTask(ctx context.Context, t model.TaskRecord) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w: %w", model.ErrNotValid, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.tasks[t.ID] = cloneRecord(t)
	r.logger.Debugf("Updated task in repository: %s", t.ID)
	return nil
}

func cloneRecord(t model.TaskRecord) model.TaskRecord {
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		t.FinishedAt = &f
	}
	if t.Report != nil {
		rp := *t.Report
		rp.ActionItems = nil
		t.Report = &rp
	}
	return t
}
