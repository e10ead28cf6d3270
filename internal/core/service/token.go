package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thejerf/abtime"

	"github.com/taskmanager/task-api/internal/core/domain"
)

const defaultTokenTTL = time.Hour

// Claims is the payload of a session credential.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies HS256 session credentials. It holds no
// state besides the secret, so verification never touches a store.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  abtime.AbstractTime
}

// NewTokenManager returns a TokenManager. A zero ttl falls back to one hour
// and a nil clock to the real clock.
func NewTokenManager(secret string, ttl time.Duration, clock abtime.AbstractTime) *TokenManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Mint signs a credential for id and returns it with its expiry.
func (m *TokenManager) Mint(id domain.Identity) (string, time.Time, error) {
	now := m.clock.Now()
	exp := now.Add(m.ttl)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   id.UserID,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := t.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Truncate(time.Second), nil
}

// Verify checks signature, algorithm and expiry and returns the embedded identity.
func (m *TokenManager) Verify(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, domain.ErrExpiredToken
		}
		return domain.Identity{}, domain.ErrInvalidToken
	}
	if !parsed.Valid || claims.UserID == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	return domain.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
