package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrTaskNotFound = errors.New("task not found")

// ErrTaskConflict means a mutation kept losing to concurrent writers.
var ErrTaskConflict = errors.New("task modified concurrently")

// ErrIdempotencyInFlight means another request holding the same
// Idempotency-Key has not finished yet.
var ErrIdempotencyInFlight = errors.New("idempotent request still in flight")

// Task is a single to-do item. UserID references the owning User; a task is
// only reachable through requests authenticated as that user.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskPatch carries a partial update. Nil fields keep their current value.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Apply copies the supplied fields onto t. It does not touch timestamps.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}

// Touch sets UpdatedAt to now, or to one millisecond past the previous value
// when the clock has not moved beyond it.
func (t *Task) Touch(now time.Time) {
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Millisecond)
	}
	t.UpdatedAt = now
}
