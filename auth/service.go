package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultUserPageSize = 50
	maxUserPageSize     = 200
)

// ServiceConfig wires the dependencies for Service.
type ServiceConfig struct {
	Repository Repository
	Tokens     *TokenProvider
	// Hasher defaults to NewHasher().
	Hasher *Hasher
	// Profiles caches user records. Optional.
	Profiles ProfileCache
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Service implements account registration, login, and the admin user surface.
type Service struct {
	repo     Repository
	tokens   *TokenProvider
	hasher   *Hasher
	profiles ProfileCache
	log      zerolog.Logger
	now      func() time.Time
}

// NewService validates the config and returns a ready Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("%w: repository required", ErrInvalidInput)
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("%w: token provider required", ErrInvalidInput)
	}
	s := &Service{
		repo:     cfg.Repository,
		tokens:   cfg.Tokens,
		hasher:   cfg.Hasher,
		profiles: cfg.Profiles,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if s.hasher == nil {
		s.hasher = NewHasher()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// RegisterInput carries a new account request.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// Register creates a voter account and signs the new user in.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, Token, error) {
	email := NormalizeEmail(input.Email)
	if !ValidateEmail(email) {
		return User{}, Token{}, fmt.Errorf("%w: valid email required", ErrInvalidInput)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return User{}, Token{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(ctx, []byte(input.Password))
	if err != nil {
		return User{}, Token{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now()
	user := User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Role:         RoleVoter,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return User{}, Token{}, err
	}

	token, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return User{}, Token{}, err
	}
	s.cacheProfile(ctx, user)
	s.log.Info().Str("user", user.ID.String()).Str("email", user.Email).Msg("user registered")
	return user, token, nil
}

// Login verifies the credentials and issues a fresh token. Unknown addresses
// and wrong passwords both come back as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (User, Token, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return User{}, Token{}, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, Token{}, ErrInvalidCredentials
		}
		return User{}, Token{}, err
	}
	if err := s.hasher.Compare(ctx, user.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return User{}, Token{}, ErrInvalidCredentials
		}
		return User{}, Token{}, err
	}

	token, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return User{}, Token{}, err
	}
	s.cacheProfile(ctx, user)
	return user, token, nil
}

// Logout revokes the token's session. Safe to call twice.
func (s *Service) Logout(ctx context.Context, tokenID string) error {
	return s.tokens.Revoke(ctx, tokenID)
}

// Parse verifies a raw bearer token. Satisfies TokenParser so the Service can
// back the http middleware directly.
func (s *Service) Parse(ctx context.Context, raw string) (Identity, error) {
	return s.tokens.Parse(ctx, raw)
}

// GetUser loads a profile, serving from the cache when possible. Cached
// copies carry no password hash.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	if id == uuid.Nil {
		return User{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if s.profiles != nil {
		var cached User
		if s.profiles.GetUser(ctx, id, &cached) {
			return cached, nil
		}
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	s.cacheProfile(ctx, user)
	return user, nil
}

// ListUsers pages through all accounts, newest first.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListUsers(ctx, limit, offset)
}

// UpdateRole changes an account's role. Tokens issued before the change keep
// their old role claim until they expire or are revoked.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, role Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.Role == role {
		return user, nil
	}

	user.Role = role
	user.UpdatedAt = s.now()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return User{}, err
	}
	if s.profiles != nil {
		s.profiles.InvalidateUser(ctx, id)
	}
	s.log.Info().Str("user", id.String()).Str("role", string(role)).Msg("role updated")
	return user, nil
}

func (s *Service) cacheProfile(ctx context.Context, user User) {
	if s.profiles != nil {
		s.profiles.SetUser(ctx, user.ID, user)
	}
}
