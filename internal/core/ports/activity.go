package ports

import (
	"context"
	"time"

	"github.com/taskmanager/task-api/internal/core/domain"
)

// TaskActivityInput is the DTO handed from the task gateway to the activity pipeline.
type TaskActivityInput struct {
	TaskID     string
	OwnerID    string
	Action     string
	Completed  bool
	OccurredAt time.Time
}

// ActivityPublisher hands activity records to the background pipeline.
// Publish must not block the caller.
type ActivityPublisher interface {
	Publish(in TaskActivityInput)
}

// ActivityService processes a single activity record.
type ActivityService interface {
	Process(ctx context.Context, in TaskActivityInput) error
}

// ActivityRepository persists activity records to the audit trail.
type ActivityRepository interface {
	Insert(ctx context.Context, a *domain.TaskActivity) error
}

// IdempotencyStore binds an owner's Idempotency-Key to the task it created.
type IdempotencyStore interface {
	// Reserve atomically claims the key. reserved is true for the first
	// caller only; later callers get the bound task id, or "" while the
	// first request is still in flight.
	Reserve(ctx context.Context, ownerID, key string) (taskID string, reserved bool, err error)
	// Remember binds a reserved key to the task it produced.
	Remember(ctx context.Context, ownerID, key, taskID string) error
	// Release frees a reservation whose request failed or whose task is gone.
	Release(ctx context.Context, ownerID, key string) error
}
