package users

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUserExists        = errors.New("users: user already exists")
	ErrUserNotFound      = errors.New("users: user not found")
	ErrUnsupportedDriver = errors.New("users: unsupported store driver")
)

// User is the stored account record. Password holds the hash, never plaintext.
type User struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Store is the key-value view over the users collection, keyed by email.
// Get returns (nil, nil) when the user does not exist.
type Store interface {
	Get(ctx context.Context, email string) (*User, error)
	Put(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, email, hash string) error
	Ping(ctx context.Context) error
	Close() error
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
