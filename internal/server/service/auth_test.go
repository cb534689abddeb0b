package service

import (
	"context"
	"errors"
	"testing"
)

func TestGenerateTokenKey(t *testing.T) {
	t.Run("generates 40-character hex key", func(t *testing.T) {
		key, err := generateTokenKey()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(key) != 40 {
			t.Errorf("expected length 40, got %d", len(key))
		}
		for _, c := range key {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
				t.Errorf("key contains non-hex character: %c", c)
			}
		}
	})

	t.Run("generates unique keys", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			key, err := generateTokenKey()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen[key] {
				t.Fatalf("duplicate key generated: %s", key)
			}
			seen[key] = true
		}
	})
}

func TestAuthValidation(t *testing.T) {
	// These paths fail before the repository is consulted.
	svc := NewAuthService(nil)

	t.Run("register requires username and password", func(t *testing.T) {
		if _, err := svc.Register(context.Background(), "", "pw", ""); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if _, err := svc.Register(context.Background(), "alice", "", ""); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("login requires username and password", func(t *testing.T) {
		if _, err := svc.Login(context.Background(), "", ""); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("authenticate rejects empty token", func(t *testing.T) {
		if _, err := svc.Authenticate(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}
