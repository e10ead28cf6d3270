package domain

import "time"

// ActivityAction names the mutation a TaskActivity records.
type ActivityAction string

const (
	ActionCreated ActivityAction = "created"
	ActionUpdated ActivityAction = "updated"
	ActionToggled ActivityAction = "toggled"
	ActionDeleted ActivityAction = "deleted"
)

// Valid reports whether a is one of the known actions.
func (a ActivityAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionToggled, ActionDeleted:
		return true
	}
	return false
}

// TaskActivity is an audit record of a successful task mutation.
type TaskActivity struct {
	TaskID     string
	OwnerID    string
	Action     ActivityAction
	Completed  bool
	OccurredAt time.Time
}
