package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EgejuruProsper/alx-polly-sub001/cache"
)

const sessionKeyPrefix = "session:"

// TokenProviderConfig wires the dependencies for a TokenProvider.
type TokenProviderConfig struct {
	// Secret signs and verifies tokens. Required.
	Secret []byte
	// Issuer is stamped into and required from every token.
	// Defaults to "alx-polly".
	Issuer string
	// TTL bounds token and session lifetime. Defaults to 24h.
	TTL time.Duration
	// Sessions holds one record per live token so logout can revoke it.
	// Required.
	Sessions cache.Store
	Logger   zerolog.Logger
	// Now is the clock used for issuing and verifying. Defaults to time.Now.
	Now func() time.Time
}

// TokenProvider issues, verifies, and revokes HS256 bearer tokens. A token is
// only accepted while its session record exists: deleting the record revokes
// the token immediately, without waiting for expiry.
type TokenProvider struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	sessions cache.Store
	log      zerolog.Logger
	now      func() time.Time
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type sessionRecord struct {
	UserID   uuid.UUID `json:"userId"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	IssuedAt time.Time `json:"issuedAt"`
}

// NewTokenProvider validates the config and returns a ready provider.
func NewTokenProvider(cfg TokenProviderConfig) (*TokenProvider, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: token secret required", ErrInvalidInput)
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("%w: session store required", ErrInvalidInput)
	}
	p := &TokenProvider{
		secret:   append([]byte(nil), cfg.Secret...),
		issuer:   cfg.Issuer,
		ttl:      cfg.TTL,
		sessions: cfg.Sessions,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if p.issuer == "" {
		p.issuer = "alx-polly"
	}
	if p.ttl <= 0 {
		p.ttl = 24 * time.Hour
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Issue mints a signed token for the user and records its session. The
// session write must succeed or the token is not handed out.
func (p *TokenProvider) Issue(ctx context.Context, user User) (Token, error) {
	if err := ctxErr(ctx); err != nil {
		return Token{}, err
	}

	jti := uuid.NewString()
	now := p.now()
	expiresAt := now.Add(p.ttl)

	claims := tokenClaims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID.String(),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: sign token: %w", err)
	}

	record, err := json.Marshal(sessionRecord{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		IssuedAt: now,
	})
	if err != nil {
		return Token{}, fmt.Errorf("auth: encode session: %w", err)
	}
	if err := p.sessions.Set(ctx, sessionKey(jti), record, p.ttl); err != nil {
		return Token{}, fmt.Errorf("auth: store session: %w", err)
	}

	p.log.Debug().Str("user", user.ID.String()).Str("jti", jti).Msg("token issued")
	return Token{Raw: raw, ID: jti, ExpiresAt: expiresAt}, nil
}

// Parse verifies the token signature and claims, then requires the session
// record to still exist. A missing record means the token was revoked.
func (p *TokenProvider) Parse(ctx context.Context, raw string) (Identity, error) {
	if err := ctxErr(ctx); err != nil {
		return Identity{}, err
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" {
		return Identity{}, fmt.Errorf("%w: malformed subject", ErrTokenInvalid)
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	live, err := p.sessions.Has(ctx, sessionKey(claims.ID))
	if err != nil {
		return Identity{}, fmt.Errorf("auth: session lookup: %w", err)
	}
	if !live {
		return Identity{}, ErrTokenRevoked
	}

	return Identity{
		UserID:    userID,
		Email:     claims.Email,
		Role:      role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke deletes the token's session record. Revoking an already revoked or
// expired token is a no-op.
func (p *TokenProvider) Revoke(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return fmt.Errorf("%w: token id required", ErrInvalidInput)
	}
	err := p.sessions.Delete(ctx, sessionKey(tokenID))
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("auth: revoke session: %w", err)
	}
	p.log.Debug().Str("jti", tokenID).Msg("token revoked")
	return nil
}

func sessionKey(jti string) string {
	return sessionKeyPrefix + jti
}
