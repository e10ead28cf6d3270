package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/taskmanager/task-api/internal/api/middleware"
	"github.com/taskmanager/task-api/internal/core/domain"
)

// ctxIdentity extracts the identity injected by the Auth middleware. Its
// absence means the route was mounted without the middleware; treat it as an
// unauthenticated request.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := c.Get(middleware.IdentityKey).(domain.Identity)
	if !ok || id.UserID == "" {
		return domain.Identity{}, domain.ErrMissingToken
	}
	return id, nil
}
