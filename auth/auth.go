// Package auth manages user accounts, credentials, and bearer tokens for the
// polling service. Passwords are hashed with bcrypt, tokens are HS256 JWTs,
// and every issued token is backed by a session record in the cache store so
// that logout revokes it before expiry.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("auth: user not found")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrTokenRevoked       = errors.New("auth: token revoked")
)

// Role gates access to the admin surface. New accounts start as voters.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleVoter Role = "voter"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleVoter
}

// User is an account record. The password hash never serializes.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the authenticated principal attached to a request after its
// bearer token has been verified.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

func (id Identity) Admin() bool {
	return id.Role == RoleAdmin
}

// Token is a freshly issued credential handed back to the client.
type Token struct {
	Raw       string    `json:"token"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Repository persists user accounts.
type Repository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	UpdateUser(ctx context.Context, user User) error
}

// ProfileCache is the slice of the application cache used for user profiles.
// Lookups are best effort: a miss or a degraded backend reads through to the
// repository.
type ProfileCache interface {
	GetUser(ctx context.Context, id uuid.UUID, dst any) bool
	SetUser(ctx context.Context, id uuid.UUID, user any)
	InvalidateUser(ctx context.Context, id uuid.UUID)
}
