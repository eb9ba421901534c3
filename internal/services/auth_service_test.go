package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"landledger/internal/auth"
	"landledger/internal/storage/memory"
)

func newTestAuth() *AuthService {
	return NewAuthService(memory.New(), auth.NewTokens("0123456789abcdef-secret", time.Hour), auth.Hasher{Cost: bcrypt.MinCost})
}

func TestAuthService_RegisterLoginAuthenticate(t *testing.T) {
	svc := newTestAuth()
	ctx := context.Background()

	u, err := svc.Register(ctx, " alice ", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Username != "alice" || u.PasswordHash == "secret1" {
		t.Errorf("registered user = %+v", u)
	}

	tok, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.TokenType != "bearer" || tok.AccessToken == "" {
		t.Errorf("token = %+v", tok)
	}

	got, err := svc.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("authenticated %q, want %q", got.ID, u.ID)
	}
}

func TestAuthService_RegisterErrors(t *testing.T) {
	svc := newTestAuth()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "bob", "12345"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("short password: %v", err)
	}
	if _, err := svc.Register(ctx, "  ", "123456"); !errors.Is(err, ErrEmptyUsername) {
		t.Errorf("blank username: %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "123456"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, "bob", "abcdef")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate: %v", err)
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc := newTestAuth()
	ctx := context.Background()
	_, _ = svc.Register(ctx, "carol", "password")

	if _, err := svc.Login(ctx, "carol", "wrong-pass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestAuthService_AuthenticateRejects(t *testing.T) {
	svc := newTestAuth()
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("garbage token: %v", err)
	}

	// valid signature for a user that does not exist
	raw, _, _ := auth.NewTokens("0123456789abcdef-secret", time.Hour).Issue("ghost")
	if _, err := svc.Authenticate(ctx, raw); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("unknown subject: %v", err)
	}
}

func TestAuthService_ForgotPassword(t *testing.T) {
	svc := newTestAuth()
	ctx := context.Background()
	_, _ = svc.Register(ctx, "dave", "password")
	for _, name := range []string{"dave", "nobody"} {
		if got := svc.ForgotPassword(ctx, name); got != ResetMessage {
			t.Errorf("ForgotPassword(%q) = %q", name, got)
		}
	}
}
