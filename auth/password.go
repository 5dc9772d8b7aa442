package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort    = errors.New("auth: password too short")
	ErrPasswordTooLong     = errors.New("auth: password too long")
	ErrPasswordNoUppercase = errors.New("auth: password must contain uppercase letter")
	ErrPasswordNoLowercase = errors.New("auth: password must contain lowercase letter")
	ErrPasswordNoDigit     = errors.New("auth: password must contain digit")
	ErrPasswordCommon      = errors.New("auth: password is too common")
	ErrPasswordMismatch    = errors.New("auth: password does not match")
)

const (
	DefaultBcryptCost = 12
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// PasswordValidationOptions configures password strength requirements.
type PasswordValidationOptions struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	CheckCommon      bool
}

// DefaultPasswordValidation returns the rules applied at registration.
func DefaultPasswordValidation() PasswordValidationOptions {
	return PasswordValidationOptions{
		MinLength:        MinPasswordLength,
		MaxLength:        MaxPasswordLength,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		CheckCommon:      true,
	}
}

// ValidatePasswordStrength checks a candidate password against the rules.
func ValidatePasswordStrength(password []byte, opts PasswordValidationOptions) error {
	if len(password) == 0 {
		return ErrPasswordTooShort
	}

	s := string(password)
	length := len([]rune(s))

	minLen := opts.MinLength
	if minLen <= 0 {
		minLen = MinPasswordLength
	}
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = MaxPasswordLength
	}
	if length < minLen {
		return ErrPasswordTooShort
	}
	if length > maxLen {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if opts.RequireUppercase && !hasUpper {
		return ErrPasswordNoUppercase
	}
	if opts.RequireLowercase && !hasLower {
		return ErrPasswordNoLowercase
	}
	if opts.RequireDigit && !hasDigit {
		return ErrPasswordNoDigit
	}
	if opts.CheckCommon && isCommonPassword(s) {
		return ErrPasswordCommon
	}
	return nil
}

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost       int
	validation PasswordValidationOptions
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithBcryptCost sets the bcrypt cost factor.
func WithBcryptCost(cost int) HasherOption {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithValidation sets the strength rules enforced by Hash.
func WithValidation(opts PasswordValidationOptions) HasherOption {
	return func(h *Hasher) {
		h.validation = opts
	}
}

// NewHasher creates a bcrypt password hasher.
func NewHasher(opts ...HasherOption) *Hasher {
	h := &Hasher{
		cost:       DefaultBcryptCost,
		validation: DefaultPasswordValidation(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Hash validates the password strength and returns its bcrypt hash.
func (h *Hasher) Hash(ctx context.Context, plain []byte) ([]byte, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if err := ValidatePasswordStrength(plain, h.validation); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword(plain, h.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: bcrypt hash failed: %w", err)
	}
	return hashed, nil
}

// Compare verifies a password against a stored hash.
func (h *Hasher) Compare(ctx context.Context, hash, plain []byte) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if len(hash) == 0 {
		return ErrPasswordMismatch
	}
	if err := bcrypt.CompareHashAndPassword(hash, plain); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: bcrypt compare failed: %w", err)
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail reports whether the address has a plausible mailbox form.
func ValidateEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// NormalizeEmail canonicalizes an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var commonPasswords = map[string]struct{}{
	"123456":      {},
	"12345678":    {},
	"123456789":   {},
	"password":    {},
	"password1":   {},
	"password123": {},
	"qwerty":      {},
	"qwerty123":   {},
	"letmein":     {},
	"welcome":     {},
	"welcome1":    {},
	"admin":       {},
	"iloveyou":    {},
	"monkey":      {},
	"dragon":      {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"abc123":      {},
	"trustno1":    {},
	"696969":      {},
	"shadow":      {},
	"master":      {},
	"superman":    {},
}

func isCommonPassword(password string) bool {
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return true
	}
	return false
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
