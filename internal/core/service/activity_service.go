package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
	"github.com/taskmanager/task-api/internal/pkg/metrics"
)

type activityService struct {
	repo ports.ActivityRepository
	log  zerolog.Logger
}

// NewActivityService returns an ActivityService that writes to repo.
func NewActivityService(repo ports.ActivityRepository, log zerolog.Logger) ports.ActivityService {
	return &activityService{repo: repo, log: log}
}

// Process validates and persists a single activity record.
func (s *activityService) Process(ctx context.Context, in ports.TaskActivityInput) error {
	start := time.Now()
	action := domain.ActivityAction(in.Action)

	if !action.Valid() {
		metrics.ActivityErrorsTotal.WithLabelValues("invalid_action").Inc()
		return fmt.Errorf("process activity: %w: unknown action %q", domain.ErrValidation, in.Action)
	}
	if in.TaskID == "" || in.OwnerID == "" {
		metrics.ActivityErrorsTotal.WithLabelValues("missing_reference").Inc()
		return fmt.Errorf("process activity: %w: task and owner are required", domain.ErrValidation)
	}

	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, &domain.TaskActivity{
		TaskID:     in.TaskID,
		OwnerID:    in.OwnerID,
		Action:     action,
		Completed:  in.Completed,
		OccurredAt: occurred.UTC(),
	}); err != nil {
		metrics.ActivityErrorsTotal.WithLabelValues("insert_failed").Inc()
		metrics.ActivityProcessingDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("process activity: insert: %w", err)
	}

	metrics.ActivityProcessedTotal.WithLabelValues(in.Action).Inc()
	metrics.ActivityProcessingDuration.WithLabelValues(in.Action).Observe(time.Since(start).Seconds())

	s.log.Debug().
		Str("task_id", in.TaskID).
		Str("owner_id", in.OwnerID).
		Str("action", in.Action).
		Msg("activity recorded")

	return nil
}
