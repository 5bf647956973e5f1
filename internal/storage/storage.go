package storage

import (
	"context"

	"github.com/agenciai/agx/internal/model"
)

// TaskRepository is the interface for the task history persistence.
type TaskRepository interface {
	CreateTask(ctx context.Context, t model.TaskRecord) error
	GetTask(ctx context.Context, id model.TaskID) (*model.TaskRecord, error)
	// ListTasks returns the most recently submitted tasks first. A limit <= 0 returns all of them.
	ListTasks(ctx context.Context, limit int) ([]model.TaskRecord, error)
	UpdateTask(ctx context.Context, t model.TaskRecord) error
}
