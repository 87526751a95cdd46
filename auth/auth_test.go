package auth

import (
	"errors"
	"testing"
	"time"
)

func TestValidator_RoundTrip(t *testing.T) {
	v := NewValidator("test_secret", "test_issuer")

	token, err := v.IssueToken("alice", 42, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	identity, err := v.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if identity.PlayerID != "alice" || identity.UserID != 42 {
		t.Errorf("expected alice/42, got %+v", identity)
	}
}

func TestValidator_MissingToken(t *testing.T) {
	v := NewValidator("test_secret", "test_issuer")

	_, err := v.ValidateToken("")
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestValidator_GarbageToken(t *testing.T) {
	v := NewValidator("test_secret", "test_issuer")

	_, err := v.ValidateToken("not.a.token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidator_ExpiredToken(t *testing.T) {
	v := NewValidator("test_secret", "test_issuer")

	token, err := v.IssueToken("alice", 42, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	_, err = v.ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestValidator_WrongSecret(t *testing.T) {
	issuer := NewValidator("secret_a", "test_issuer")
	verifier := NewValidator("secret_b", "test_issuer")

	token, err := issuer.IssueToken("alice", 42, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	_, err = verifier.ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestValidator_WrongIssuer(t *testing.T) {
	issuer := NewValidator("test_secret", "issuer_a")
	verifier := NewValidator("test_secret", "issuer_b")

	token, err := issuer.IssueToken("alice", 42, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	_, err = verifier.ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}
