package jsonfile

import (
	"context"

	"github.com/taskmanager/task-api/internal/core/domain"
)

type UserRepository struct {
	store *Store
}

func NewUserRepository(s *Store) *UserRepository {
	return &UserRepository{store: s}
}

// Create appends the user unless the username is taken. The check and the
// write happen under the same lock.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	err := r.store.update(ctx, func(doc *document) error {
		for _, u := range doc.Users {
			if u.Username == user.Username {
				return domain.ErrUserExists
			}
		}
		doc.Users = append(doc.Users, userRecord{
			ID:        user.ID,
			Username:  user.Username,
			Password:  user.PasswordHash,
			CreatedAt: user.CreatedAt.UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	created := *user
	return &created, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(ctx, func(u userRecord) bool { return u.Username == username })
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.find(ctx, func(u userRecord) bool { return u.ID == id })
}

func (r *UserRepository) find(ctx context.Context, match func(userRecord) bool) (*domain.User, error) {
	var found *domain.User
	err := r.store.view(ctx, func(doc *document) error {
		for _, u := range doc.Users {
			if match(u) {
				found = &domain.User{
					ID:           u.ID,
					Username:     u.Username,
					PasswordHash: u.Password,
					CreatedAt:    u.CreatedAt.UTC(),
				}
				return nil
			}
		}
		return domain.ErrUserNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
