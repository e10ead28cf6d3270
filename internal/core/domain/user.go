package domain

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("username already exists")
var ErrInvalidCredentials = errors.New("invalid username or password")

// User models an account that owns tasks.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the (user id, username) pair recovered from a verified credential.
type Identity struct {
	UserID   string
	Username string
}

// Identity returns the identity a credential minted for u would carry.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username}
}
