package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
)

const collectionActivity = "task_activity"

// ActivityRepository implements ports.ActivityRepository using MongoDB.
type ActivityRepository struct {
	db *mongo.Database
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{db: db}
}

var _ ports.ActivityRepository = (*ActivityRepository)(nil)

// Insert persists an activity record to the audit collection.
func (r *ActivityRepository) Insert(ctx context.Context, a *domain.TaskActivity) error {
	doc := bson.M{
		"task_id":      a.TaskID,
		"owner_id":     a.OwnerID,
		"action":       string(a.Action),
		"completed":    a.Completed,
		"occurred_at":  a.OccurredAt.UTC(),
		"processed_at": time.Now().UTC(),
	}

	_, err := r.db.Collection(collectionActivity).InsertOne(ctx, doc)
	return err
}

func (r *ActivityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.db.Collection(collectionActivity).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "task_id", Value: 1}, {Key: "occurred_at", Value: 1}},
	})
	return err
}
