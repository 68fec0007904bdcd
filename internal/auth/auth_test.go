package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/AHasnain3/mamamia/internal/auth"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword err: %v", err)
	}
	if err := auth.VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword err: %v", err)
	}
	if err := auth.VerifyPassword(hash, "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestEmptyHashNeverVerifies(t *testing.T) {
	if err := auth.VerifyPassword("", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	if issuer == nil {
		t.Fatal("expected issuer")
	}

	token, err := issuer.Generate("p1")
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	subject, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if subject != "p1" {
		t.Fatalf("unexpected subject: %q", subject)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	other := auth.NewTokenIssuer("other-secret", time.Hour)

	token, err := issuer.Generate("p1")
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestEmptySecretDisablesIssuer(t *testing.T) {
	if auth.NewTokenIssuer("", time.Hour) != nil {
		t.Fatal("empty secret must disable the issuer")
	}
}
