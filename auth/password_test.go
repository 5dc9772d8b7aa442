package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePasswordStrength(t *testing.T) {
	opts := DefaultPasswordValidation()

	cases := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "Str0ngPass", nil},
		{"valid with symbols", "C0rrect-Horse!", nil},
		{"empty", "", ErrPasswordTooShort},
		{"too short", "Ab1", ErrPasswordTooShort},
		{"too long", strings.Repeat("Ab1", 50), ErrPasswordTooLong},
		{"no uppercase", "weakpass1", ErrPasswordNoUppercase},
		{"no lowercase", "WEAKPASS1", ErrPasswordNoLowercase},
		{"no digit", "WeakPassword", ErrPasswordNoDigit},
		{"common", "Password123", ErrPasswordCommon},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePasswordStrength([]byte(tc.password), opts)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ValidatePasswordStrength(%q) = %v, want %v", tc.password, err, tc.wantErr)
			}
		})
	}
}

func TestValidatePasswordStrengthCountsRunes(t *testing.T) {
	// 8 multi-byte runes must satisfy the minimum length.
	password := "Pass1日本語"
	err := ValidatePasswordStrength([]byte(password), PasswordValidationOptions{MinLength: 8})
	if err != nil {
		t.Fatalf("ValidatePasswordStrength() error = %v", err)
	}
}

func TestHasherRoundTrip(t *testing.T) {
	hasher := NewHasher(WithBcryptCost(bcrypt.MinCost))
	ctx := context.Background()

	hash, err := hasher.Hash(ctx, []byte("Str0ngPass"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if len(hash) == 0 {
		t.Fatal("Hash() returned empty hash")
	}

	if err := hasher.Compare(ctx, hash, []byte("Str0ngPass")); err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if err := hasher.Compare(ctx, hash, []byte("WrongPass1")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare() with wrong password = %v, want ErrPasswordMismatch", err)
	}
	if err := hasher.Compare(ctx, nil, []byte("Str0ngPass")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare() with empty hash = %v, want ErrPasswordMismatch", err)
	}
}

func TestHasherRejectsWeakPasswords(t *testing.T) {
	hasher := NewHasher(WithBcryptCost(bcrypt.MinCost))
	if _, err := hasher.Hash(context.Background(), []byte("short")); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("Hash() = %v, want ErrPasswordTooShort", err)
	}
}

func TestHasherHonorsContext(t *testing.T) {
	hasher := NewHasher(WithBcryptCost(bcrypt.MinCost))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := hasher.Hash(ctx, []byte("Str0ngPass")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Hash() with cancelled context = %v, want context.Canceled", err)
	}
}

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"user+tag@sub.domain.co.uk", true},
		{"USER@EXAMPLE.COM", true},
		{"", false},
		{"invalid", false},
		{"@example.com", false},
		{"user@", false},
		{"user@domain", false},
		{"user name@example.com", false},
		{strings.Repeat("a", 250) + "@example.com", false},
	}

	for _, tc := range cases {
		if got := ValidateEmail(tc.email); got != tc.want {
			t.Errorf("ValidateEmail(%q) = %v, want %v", tc.email, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Fatalf("NormalizeEmail() = %q", got)
	}
}
