package ports

import (
	"context"
	"time"

	"github.com/taskmanager/task-api/internal/core/domain"
)

// AuthResult is returned by a successful signup or login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type AuthService interface {
	Signup(ctx context.Context, username, password string) (*AuthResult, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
}

// TokenVerifier authenticates a bearer token without consulting any store.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}
