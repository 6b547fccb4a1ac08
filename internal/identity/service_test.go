package identity

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Email: "  Alice@Example.com ", Password: "supersecret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email must be normalized, got %q", user.Email)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte("supersecret")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	got, err := svc.Authenticate(ctx, Credentials{Email: "alice@example.com", Password: "supersecret"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "no-at-sign", Password: "supersecret"}); err == nil {
		t.Fatal("expected error for malformed email")
	}
	if _, err := svc.Register(ctx, Credentials{Email: "a@b.com", Password: "short"}); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "bob@example.com", Password: "supersecret"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "bob@example.com", Password: "wrongpass"}); err == nil {
		t.Fatal("expected error for wrong password")
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "supersecret"}); err == nil {
		t.Fatal("expected error for unknown email")
	}
}
