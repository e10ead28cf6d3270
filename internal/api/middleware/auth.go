package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
	"github.com/taskmanager/task-api/internal/pkg/metrics"
)

// IdentityKey is the echo.Context key holding the authenticated domain.Identity.
const IdentityKey = "identity"

// Auth verifies the bearer token and injects the caller's identity into
// context. A missing token yields domain.ErrMissingToken; a bad or expired
// one yields the verifier's error. The HTTP error handler maps both.
func Auth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				metrics.TokenVerificationsTotal.WithLabelValues("missing").Inc()
				return domain.ErrMissingToken
			}

			id, err := verifier.Verify(token)
			if err != nil {
				result := "invalid"
				if errors.Is(err, domain.ErrExpiredToken) {
					result = "expired"
				}
				metrics.TokenVerificationsTotal.WithLabelValues(result).Inc()
				return err
			}

			metrics.TokenVerificationsTotal.WithLabelValues("ok").Inc()
			c.Set(IdentityKey, id)
			return next(c)
		}
	}
}

// bearerToken extracts the credential from "Bearer <token>". Any other
// scheme, such as "Token abc", counts as no token and yields a 401.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
