package ports

import (
	"context"

	"github.com/taskmanager/task-api/internal/core/domain"
)

// CreateTaskInput carries the data needed to create a task.
type CreateTaskInput struct {
	Title       string
	Description string
	// IdempotencyKey, when set, makes a replayed create return the task
	// created by the first request.
	IdempotencyKey string
}

// TaskService is the authorization gateway over the task store. Every
// operation is scoped to the given identity.
type TaskService interface {
	List(ctx context.Context, id domain.Identity, completed *bool) ([]*domain.Task, error)
	Get(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error)
	Create(ctx context.Context, id domain.Identity, input CreateTaskInput) (*domain.Task, error)
	Update(ctx context.Context, id domain.Identity, taskID string, patch domain.TaskPatch) (*domain.Task, error)
	Toggle(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error)
	Delete(ctx context.Context, id domain.Identity, taskID string) error
}
