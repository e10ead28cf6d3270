package jsonfile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/taskmanager/task-api/internal/core/domain"
)

// ActivityLog is the audit trail for the file driver: one structured log
// line per record rather than growing the data file.
type ActivityLog struct {
	log zerolog.Logger
}

func NewActivityLog(log zerolog.Logger) *ActivityLog {
	return &ActivityLog{log: log.With().Str("component", "audit").Logger()}
}

func (a *ActivityLog) Insert(_ context.Context, act *domain.TaskActivity) error {
	a.log.Info().
		Str("task_id", act.TaskID).
		Str("owner_id", act.OwnerID).
		Str("action", string(act.Action)).
		Bool("completed", act.Completed).
		Time("occurred_at", act.OccurredAt).
		Msg("task activity")
	return nil
}
