package ports

import (
	"context"

	"github.com/taskmanager/task-api/internal/core/domain"
)

// TaskFilter narrows a task listing. OwnerID is always set by the service.
type TaskFilter struct {
	OwnerID   string
	Completed *bool // nil = any
}

// TaskRepository is the record store for tasks. Every lookup is scoped by
// owner so that a foreign task is indistinguishable from a missing one.
type TaskRepository interface {
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)
	// Get returns domain.ErrTaskNotFound unless a task with id exists and is
	// owned by ownerID.
	Get(ctx context.Context, id, ownerID string) (*domain.Task, error)
	// Put inserts or replaces the task with t.ID.
	Put(ctx context.Context, t *domain.Task) error
	// Mutate loads the owner's task, applies fn and stores the result as one
	// atomic step, so concurrent mutations never overwrite each other. It
	// fails like Get when the task is missing or foreign. fn must advance
	// UpdatedAt; an error from fn aborts without writing.
	Mutate(ctx context.Context, id, ownerID string, fn func(*domain.Task) error) (*domain.Task, error)
	Delete(ctx context.Context, id, ownerID string) error
}
