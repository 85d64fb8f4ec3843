package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	t.Run("hash verifies", func(t *testing.T) {
		hash, err := HashPassword("s3cret", bcrypt.MinCost)
		if err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
		if !strings.HasPrefix(hash, "$2a$") {
			t.Errorf("hash = %q, want bcrypt format", hash)
		}
		if err := VerifyPassword("s3cret", hash); err != nil {
			t.Errorf("VerifyPassword() error = %v", err)
		}
	})

	t.Run("salted", func(t *testing.T) {
		a, _ := HashPassword("same", bcrypt.MinCost)
		b, _ := HashPassword("same", bcrypt.MinCost)
		if a == b {
			t.Error("two hashes of the same password are identical")
		}
	})

	t.Run("empty password", func(t *testing.T) {
		if _, err := HashPassword("", bcrypt.MinCost); err != ErrEmptyPassword {
			t.Errorf("error = %v, want ErrEmptyPassword", err)
		}
	})

	t.Run("invalid cost", func(t *testing.T) {
		if _, err := HashPassword("x", bcrypt.MaxCost+1); err == nil {
			t.Error("expected error for cost above max")
		}
		if _, err := HashPassword("x", 1); err == nil {
			t.Error("expected error for cost below min")
		}
	})
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     error
	}{
		{"match", "correct", hash, nil},
		{"mismatch", "wrong", hash, ErrPasswordMismatch},
		{"empty password", "", hash, ErrEmptyPassword},
		{"garbage hash", "correct", "not-a-hash", ErrPasswordMismatch},
		{"empty hash", "correct", "", ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}
