package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thejerf/abtime"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
	"github.com/taskmanager/task-api/internal/pkg/metrics"
)

// Stored timestamps are truncated to this precision so that every store
// round-trips them exactly.
const timePrecision = time.Millisecond

const (
	defaultIdemWait = 2 * time.Second
	defaultIdemPoll = 25 * time.Millisecond
)

// TaskService is the authorization gateway: every read and write goes
// through the caller's identity and never through a client-supplied owner.
type TaskService struct {
	tasks    ports.TaskRepository
	users    ports.UserRepository
	activity ports.ActivityPublisher
	idem     ports.IdempotencyStore
	clock    abtime.AbstractTime
	logger   zerolog.Logger

	idemWait time.Duration
	idemPoll time.Duration
}

// TaskServiceOption configures optional collaborators.
type TaskServiceOption func(*TaskService)

// WithActivityPublisher routes mutation records to p.
func WithActivityPublisher(p ports.ActivityPublisher) TaskServiceOption {
	return func(s *TaskService) { s.activity = p }
}

// WithIdempotencyStore enables Idempotency-Key handling on Create.
func WithIdempotencyStore(st ports.IdempotencyStore) TaskServiceOption {
	return func(s *TaskService) { s.idem = st }
}

// WithIdempotencyWait bounds how long Create waits on a concurrent request
// holding the same key before giving up with domain.ErrIdempotencyInFlight.
func WithIdempotencyWait(wait, poll time.Duration) TaskServiceOption {
	return func(s *TaskService) {
		s.idemWait = wait
		s.idemPoll = poll
	}
}

// WithClock replaces the real clock.
func WithClock(c abtime.AbstractTime) TaskServiceOption {
	return func(s *TaskService) { s.clock = c }
}

func NewTaskService(tasks ports.TaskRepository, users ports.UserRepository, logger zerolog.Logger, opts ...TaskServiceOption) *TaskService {
	s := &TaskService{
		tasks:    tasks,
		users:    users,
		clock:    abtime.NewRealTime(),
		logger:   logger,
		idemWait: defaultIdemWait,
		idemPoll: defaultIdemPoll,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the caller's tasks, oldest first, optionally filtered by completion.
func (s *TaskService) List(ctx context.Context, id domain.Identity, completed *bool) ([]*domain.Task, error) {
	tasks, err := s.tasks.List(ctx, ports.TaskFilter{OwnerID: id.UserID, Completed: completed})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error) {
	return s.findOwnedOrFail(ctx, id, taskID)
}

// Create stores a new, incomplete task owned by the caller. With an
// idempotency key, concurrent and repeated requests yield the same task.
func (s *TaskService) Create(ctx context.Context, id domain.Identity, input ports.CreateTaskInput) (*domain.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	existing, claimed, err := s.claim(ctx, id, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	task, err := s.create(ctx, id, title, input.Description)
	if err != nil {
		if claimed {
			s.release(ctx, id, input.IdempotencyKey)
		}
		return nil, err
	}

	if claimed {
		if err := s.idem.Remember(ctx, id.UserID, input.IdempotencyKey, task.ID); err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("failed to store idempotency key")
		}
	}

	s.logger.Info().Str("task_id", task.ID).Str("user_id", id.UserID).Msg("task created")
	s.record(task, domain.ActionCreated)
	return task, nil
}

func (s *TaskService) create(ctx context.Context, id domain.Identity, title, description string) (*domain.Task, error) {
	// The token is stateless, so make sure its subject still exists before
	// attaching records to it.
	if _, err := s.users.FindByID(ctx, id.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("create task: %w", err)
	}

	now := s.now()
	task := &domain.Task{
		ID:          uuid.NewString(),
		UserID:      id.UserID,
		Title:       title,
		Description: description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tasks.Put(ctx, task); err != nil {
		s.logger.Error().Err(err).Str("user_id", id.UserID).Msg("failed to create task")
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Update applies a partial update and refreshes UpdatedAt.
func (s *TaskService) Update(ctx context.Context, id domain.Identity, taskID string, patch domain.TaskPatch) (*domain.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
	}

	task, err := s.mutateOwned(ctx, id, taskID, func(t *domain.Task) {
		patch.Apply(t)
	})
	if err != nil {
		return nil, err
	}

	s.record(task, domain.ActionUpdated)
	return task, nil
}

// Toggle flips the completion flag.
func (s *TaskService) Toggle(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error) {
	task, err := s.mutateOwned(ctx, id, taskID, func(t *domain.Task) {
		t.Completed = !t.Completed
	})
	if err != nil {
		return nil, err
	}

	s.record(task, domain.ActionToggled)
	return task, nil
}

// mutateOwned runs change on the caller's task inside the store's atomic
// read-modify-write and refreshes UpdatedAt.
func (s *TaskService) mutateOwned(ctx context.Context, id domain.Identity, taskID string, change func(*domain.Task)) (*domain.Task, error) {
	if id.UserID == "" {
		return nil, domain.ErrInvalidToken
	}
	if taskID == "" {
		return nil, domain.ErrTaskNotFound
	}

	task, err := s.tasks.Mutate(ctx, taskID, id.UserID, func(t *domain.Task) error {
		if t.UserID != id.UserID {
			return domain.ErrTaskNotFound
		}
		change(t)
		t.Touch(s.now())
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) || errors.Is(err, domain.ErrTaskConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// Delete removes the task permanently.
func (s *TaskService) Delete(ctx context.Context, id domain.Identity, taskID string) error {
	task, err := s.findOwnedOrFail(ctx, id, taskID)
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, task.ID, id.UserID); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("delete task: %w", err)
	}

	s.logger.Info().Str("task_id", task.ID).Str("user_id", id.UserID).Msg("task deleted")
	s.record(task, domain.ActionDeleted)
	return nil
}

// findOwnedOrFail is the ownership check behind reads and deletes;
// mutateOwned applies the same rules inside the store's atomic write. Missing
// and foreign tasks both yield domain.ErrTaskNotFound.
func (s *TaskService) findOwnedOrFail(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error) {
	if id.UserID == "" {
		return nil, domain.ErrInvalidToken
	}
	if taskID == "" {
		return nil, domain.ErrTaskNotFound
	}

	task, err := s.tasks.Get(ctx, taskID, id.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	// Stores filter by owner already; this guards against a store that doesn't.
	if task.UserID != id.UserID {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// claim resolves an Idempotency-Key before a create. It returns the task a
// previous request with the key produced, or claimed=true when this request
// owns the key and must create. While another request holds the key it polls
// until idemWait runs out. Store failures only degrade to a plain create.
func (s *TaskService) claim(ctx context.Context, id domain.Identity, key string) (*domain.Task, bool, error) {
	if key == "" || s.idem == nil {
		return nil, false, nil
	}

	deadline := s.clock.Now().Add(s.idemWait)
	for {
		taskID, reserved, err := s.idem.Reserve(ctx, id.UserID, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency reserve failed, creating anyway")
			return nil, false, nil
		}
		if reserved {
			metrics.IdempotencyTotal.WithLabelValues("miss").Inc()
			return nil, true, nil
		}

		if taskID != "" {
			task, err := s.findOwnedOrFail(ctx, id, taskID)
			if err == nil {
				metrics.IdempotencyTotal.WithLabelValues("hit").Inc()
				s.logger.Info().Str("idempotency_key", key).Str("task_id", task.ID).Msg("idempotent replay")
				return task, false, nil
			}
			if !errors.Is(err, domain.ErrTaskNotFound) {
				return nil, false, err
			}
			// The original task is gone; free the key and claim it again.
			metrics.IdempotencyTotal.WithLabelValues("stale").Inc()
			if !s.release(ctx, id, key) {
				return nil, false, nil
			}
			continue
		}

		if !s.clock.Now().Before(deadline) {
			metrics.IdempotencyTotal.WithLabelValues("in_flight").Inc()
			return nil, false, domain.ErrIdempotencyInFlight
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-s.clock.After(s.idemPoll, 0):
		}
	}
}

// release frees the key even when the request context is already done.
func (s *TaskService) release(ctx context.Context, id domain.Identity, key string) bool {
	if err := s.idem.Release(context.WithoutCancel(ctx), id.UserID, key); err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("failed to release idempotency key")
		return false
	}
	return true
}

func (s *TaskService) record(t *domain.Task, action domain.ActivityAction) {
	metrics.TaskMutationsTotal.WithLabelValues(string(action)).Inc()
	if s.activity == nil {
		return
	}
	s.activity.Publish(ports.TaskActivityInput{
		TaskID:     t.ID,
		OwnerID:    t.UserID,
		Action:     string(action),
		Completed:  t.Completed,
		OccurredAt: s.now(),
	})
}

func (s *TaskService) now() time.Time {
	return s.clock.Now().UTC().Truncate(timePrecision)
}
