package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskmanager/task-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Message string `json:"message"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"message": "<text>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Message: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	if code, msg, ok := classify(err); ok {
		return code, msg
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}

// classify maps known errors to a status and client message. ok is false for
// anything that should surface as a 500.
func classify(err error) (code int, msg string, ok bool) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, validationDetail(err), true
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusBadRequest, "Username already exists", true
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid username or password", true
	case errors.Is(err, domain.ErrMissingToken):
		return http.StatusUnauthorized, "Access denied. No token provided.", true
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrExpiredToken):
		return http.StatusForbidden, "Invalid token", true
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "Task not found", true
	case errors.Is(err, domain.ErrTaskConflict):
		return http.StatusConflict, "Task was modified concurrently, retry the request", true
	case errors.Is(err, domain.ErrIdempotencyInFlight):
		return http.StatusConflict, "A request with this Idempotency-Key is still in progress", true
	}

	// Echo's own errors (404 from router, 405, body limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message), true
	}
	return 0, "", false
}

// statusCode reports the status a request finished with, for middleware that
// observes the error before the error handler renders it.
func statusCode(c echo.Context, err error) int {
	if c.Response().Committed || err == nil {
		return c.Response().Status
	}
	if code, _, ok := classify(err); ok {
		return code
	}
	return http.StatusInternalServerError
}

// validationDetail strips the sentinel prefix so clients only see the detail.
func validationDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(domain.ErrValidation.Error())+2:]
	}
	return msg
}
