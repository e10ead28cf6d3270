package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
	"github.com/taskmanager/task-api/internal/pkg/metrics"
)

// maxMutateAttempts bounds the optimistic retry loop in Mutate.
const maxMutateAttempts = 16

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(d *DB) *TaskRepository {
	return &TaskRepository{db: d.gorm}
}

func (r *TaskRepository) List(ctx context.Context, filter ports.TaskFilter) ([]*domain.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", filter.OwnerID)
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}

	var rows []taskRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, toDomainTask(row))
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, id, ownerID string) (*domain.Task, error) {
	var row taskRow
	err := r.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return toDomainTask(row), nil
}

// Put upserts the row keyed by id.
func (r *TaskRepository) Put(ctx context.Context, t *domain.Task) error {
	row := taskRow{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Mutate is a compare-and-swap on updated_at: the write only lands if the row
// still carries the timestamp fn saw, otherwise it reloads and retries.
func (r *TaskRepository) Mutate(ctx context.Context, id, ownerID string, fn func(*domain.Task) error) (*domain.Task, error) {
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		task, err := r.Get(ctx, id, ownerID)
		if err != nil {
			return nil, err
		}
		seen := task.UpdatedAt.UTC()
		if err := fn(task); err != nil {
			return nil, err
		}

		result := r.db.WithContext(ctx).
			Model(&taskRow{}).
			Where("id = ? AND user_id = ? AND updated_at = ?", id, ownerID, seen).
			Updates(map[string]any{
				"title":       task.Title,
				"description": task.Description,
				"completed":   task.Completed,
				"updated_at":  task.UpdatedAt.UTC(),
			})
		if err := result.Error; err != nil {
			return nil, fmt.Errorf("failed to update task: %w", err)
		}
		if result.RowsAffected == 1 {
			return task, nil
		}
		metrics.TaskConflictsTotal.Inc()
	}
	return nil, domain.ErrTaskConflict
}

func (r *TaskRepository) Delete(ctx context.Context, id, ownerID string) error {
	result := r.db.WithContext(ctx).Delete(&taskRow{}, "id = ? AND user_id = ?", id, ownerID)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func toDomainTask(row taskRow) *domain.Task {
	return &domain.Task{
		ID:          row.ID,
		UserID:      row.UserID,
		Title:       row.Title,
		Description: row.Description,
		Completed:   row.Completed,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}
