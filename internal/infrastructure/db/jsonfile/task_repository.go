package jsonfile

import (
	"context"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
)

type TaskRepository struct {
	store *Store
}

func NewTaskRepository(s *Store) *TaskRepository {
	return &TaskRepository{store: s}
}

// List returns the owner's tasks in file order.
func (r *TaskRepository) List(ctx context.Context, filter ports.TaskFilter) ([]*domain.Task, error) {
	tasks := []*domain.Task{}
	err := r.store.view(ctx, func(doc *document) error {
		for _, t := range doc.Tasks {
			if t.UserID != filter.OwnerID {
				continue
			}
			if filter.Completed != nil && t.Completed != *filter.Completed {
				continue
			}
			tasks = append(tasks, toDomainTask(t))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, id, ownerID string) (*domain.Task, error) {
	var found *domain.Task
	err := r.store.view(ctx, func(doc *document) error {
		if i := indexOf(doc.Tasks, id, ownerID); i >= 0 {
			found = toDomainTask(doc.Tasks[i])
			return nil
		}
		return domain.ErrTaskNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Put replaces the task in place, or appends it when the id is new.
func (r *TaskRepository) Put(ctx context.Context, t *domain.Task) error {
	rec := toTaskRecord(t)
	return r.store.update(ctx, func(doc *document) error {
		for i := range doc.Tasks {
			if doc.Tasks[i].ID == rec.ID {
				doc.Tasks[i] = rec
				return nil
			}
		}
		doc.Tasks = append(doc.Tasks, rec)
		return nil
	})
}

// Mutate applies fn while holding the store lock, so the read and the write
// see no interleaved writer.
func (r *TaskRepository) Mutate(ctx context.Context, id, ownerID string, fn func(*domain.Task) error) (*domain.Task, error) {
	var out *domain.Task
	err := r.store.update(ctx, func(doc *document) error {
		i := indexOf(doc.Tasks, id, ownerID)
		if i < 0 {
			return domain.ErrTaskNotFound
		}
		t := toDomainTask(doc.Tasks[i])
		if err := fn(t); err != nil {
			return err
		}
		doc.Tasks[i] = toTaskRecord(t)
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id, ownerID string) error {
	return r.store.update(ctx, func(doc *document) error {
		i := indexOf(doc.Tasks, id, ownerID)
		if i < 0 {
			return domain.ErrTaskNotFound
		}
		doc.Tasks = append(doc.Tasks[:i], doc.Tasks[i+1:]...)
		return nil
	})
}

func indexOf(tasks []taskRecord, id, ownerID string) int {
	for i, t := range tasks {
		if t.ID == id && t.UserID == ownerID {
			return i
		}
	}
	return -1
}

func toTaskRecord(t *domain.Task) taskRecord {
	return taskRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func toDomainTask(r taskRecord) *domain.Task {
	return &domain.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}
