package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Message string `json:"message"`
}

// isoMillis matches the timestamps the browser client has always received,
// e.g. 2026-03-01T09:00:00.000Z.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// --- Request / Response types ---

type createTaskRequest struct {
	Title       string `json:"title"       validate:"required,notblank"`
	Description string `json:"description"`
}

// updateTaskRequest is a partial update: omitted fields keep their value.
type updateTaskRequest struct {
	Title       *string `json:"title"       validate:"omitnil,notblank"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

type taskResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
