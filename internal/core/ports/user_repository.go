package ports

import (
	"context"

	"github.com/taskmanager/task-api/internal/core/domain"
)

// UserRepository persists user accounts.
type UserRepository interface {
	// Create stores a new user. It returns domain.ErrUserExists when the
	// username is already taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}
