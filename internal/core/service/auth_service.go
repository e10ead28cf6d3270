package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thejerf/abtime"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
	"github.com/taskmanager/task-api/internal/pkg/metrics"
)

// AuthService implements signup and login.
type AuthService struct {
	repo       ports.UserRepository
	tokens     *TokenManager
	bcryptCost int
	clock      abtime.AbstractTime
	log        zerolog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(repo ports.UserRepository, tokens *TokenManager, bcryptCost int, clock abtime.AbstractTime, log zerolog.Logger) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &AuthService{repo: repo, tokens: tokens, bcryptCost: bcryptCost, clock: clock, log: log}
}

// Signup creates an account and returns a credential bound to it.
func (s *AuthService) Signup(ctx context.Context, username, password string) (*ports.AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "duplicate").Inc()
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("signup: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("signup: hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now().UTC().Truncate(timePrecision),
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			metrics.AuthAttemptsTotal.WithLabelValues("signup", "duplicate").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user signed up")
	metrics.AuthAttemptsTotal.WithLabelValues("signup", "success").Inc()

	return s.issue(created)
}

// Login checks the password against the stored hash. An unknown username and
// a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("login: %w", err)
		}
		// Burn the same bcrypt work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*ports.AuthResult, error) {
	token, exp, err := s.tokens.Mint(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	return &ports.AuthResult{Token: token, ExpiresAt: exp, User: user}, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
	})
	return s.dummyHash
}
