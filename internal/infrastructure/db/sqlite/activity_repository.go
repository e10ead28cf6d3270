package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/taskmanager/task-api/internal/core/domain"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(d *DB) *ActivityRepository {
	return &ActivityRepository{db: d.gorm}
}

// Insert appends one record to the task_activity table.
func (r *ActivityRepository) Insert(ctx context.Context, a *domain.TaskActivity) error {
	row := activityRow{
		TaskID:     a.TaskID,
		OwnerID:    a.OwnerID,
		Action:     string(a.Action),
		Completed:  a.Completed,
		OccurredAt: a.OccurredAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}
