package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskmanager/task-api/internal/core/domain"
)

func TestHTTPErrorHandler_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"validation", fmt.Errorf("%w: title is required", domain.ErrValidation), http.StatusBadRequest, "title is required"},
		{"duplicate user", domain.ErrUserExists, http.StatusBadRequest, "Username already exists"},
		{"bad credentials", domain.ErrInvalidCredentials, http.StatusBadRequest, "Invalid username or password"},
		{"missing token", domain.ErrMissingToken, http.StatusUnauthorized, "Access denied. No token provided."},
		{"invalid token", domain.ErrInvalidToken, http.StatusForbidden, "Invalid token"},
		{"expired token", domain.ErrExpiredToken, http.StatusForbidden, "Invalid token"},
		{"task not found", fmt.Errorf("find task: %w", domain.ErrTaskNotFound), http.StatusNotFound, "Task not found"},
		{"task conflict", fmt.Errorf("save task: %w", domain.ErrTaskConflict), http.StatusConflict, "Task was modified concurrently, retry the request"},
		{"idempotency in flight", domain.ErrIdempotencyInFlight, http.StatusConflict, "A request with this Idempotency-Key is still in progress"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), http.StatusMethodNotAllowed, "Method Not Allowed"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/tasks", nil), rec)

			NewHTTPErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["message"] != tt.wantMsg {
				t.Fatalf("message = %q, want %q", body["message"], tt.wantMsg)
			}
		})
	}
}

func TestHTTPErrorHandler_CommittedResponseUntouched(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.NoContent(http.StatusNoContent)

	NewHTTPErrorHandler(zerolog.Nop())(errors.New("late failure"), c)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 to stand, got %d", rec.Code)
	}
}
