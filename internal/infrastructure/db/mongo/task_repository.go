package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
	"github.com/taskmanager/task-api/internal/pkg/metrics"
)

const (
	collectionTasks   = "tasks"
	maxMutateAttempts = 16
)

type TaskRepository struct {
	col *mongo.Collection
}

func NewTaskRepository(db *mongo.Database) *TaskRepository {
	return &TaskRepository{col: db.Collection(collectionTasks)}
}

type mongoTask struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Completed   bool      `bson:"completed"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// listFilter translates a TaskFilter into a query document. The owner is
// always part of it.
func listFilter(f ports.TaskFilter) bson.M {
	filter := bson.M{"user_id": f.OwnerID}
	if f.Completed != nil {
		filter["completed"] = *f.Completed
	}
	return filter
}

func ownedFilter(id, ownerID string) bson.M {
	return bson.M{"_id": id, "user_id": ownerID}
}

// casFilter matches the owner's task only while it still carries the
// updated_at value that was read.
func casFilter(id, ownerID string, seen time.Time) bson.M {
	filter := ownedFilter(id, ownerID)
	filter["updated_at"] = seen.UTC()
	return filter
}

// List returns the owner's tasks sorted by creation time.
func (r *TaskRepository) List(ctx context.Context, f ports.TaskFilter) ([]*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, listFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoTask
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.toDomain())
	}
	return tasks, nil
}

// Get retrieves a task by id, filtered by owner.
func (r *TaskRepository) Get(ctx context.Context, id, ownerID string) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoTask
	if err := r.col.FindOne(ctx, ownedFilter(id, ownerID)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// Put replaces the whole document, inserting it when missing.
func (r *TaskRepository) Put(ctx context.Context, t *domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := fromDomainTask(t)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// Mutate replaces the document only if nobody wrote it since it was read,
// retrying on conflict.
func (r *TaskRepository) Mutate(ctx context.Context, id, ownerID string, fn func(*domain.Task) error) (*domain.Task, error) {
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		task, err := r.Get(ctx, id, ownerID)
		if err != nil {
			return nil, err
		}
		seen := task.UpdatedAt
		if err := fn(task); err != nil {
			return nil, err
		}

		swapped, err := r.replaceIfUnchanged(ctx, task, seen)
		if err != nil {
			return nil, err
		}
		if swapped {
			return task, nil
		}
		metrics.TaskConflictsTotal.Inc()
	}
	return nil, domain.ErrTaskConflict
}

func (r *TaskRepository) replaceIfUnchanged(ctx context.Context, t *domain.Task, seen time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.ReplaceOne(ctx, casFilter(t.ID, t.UserID, seen), fromDomainTask(t))
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, ownedFilter(id, ownerID))
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the tasks collection.
func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "completed", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func fromDomainTask(t *domain.Task) mongoTask {
	return mongoTask{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (d mongoTask) toDomain() *domain.Task {
	return &domain.Task{
		ID:          d.ID,
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}
