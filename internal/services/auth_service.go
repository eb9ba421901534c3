package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"landledger/internal/auth"
	"landledger/internal/core"
	applog "landledger/internal/log"
	"landledger/internal/storage"
)

var (
	ErrUsernameTaken = errors.New("username already exists")
	ErrWeakPassword  = fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	ErrEmptyUsername = errors.New("username is required")
	ErrUserNotFound  = errors.New("user not found")
)

// ResetMessage is returned by ForgotPassword whether or not the user exists.
const ResetMessage = "If user exists, reset instructions sent"

// Token is an issued bearer credential.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthService registers users and exchanges credentials for bearer tokens.
type AuthService struct {
	users  storage.UserStore
	tokens *auth.Tokens
	hasher auth.Hasher
}

func NewAuthService(users storage.UserStore, tokens *auth.Tokens, hasher auth.Hasher) *AuthService {
	return &AuthService{users: users, tokens: tokens, hasher: hasher}
}

// Register creates a user account.
func (s *AuthService) Register(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.User{}, ErrEmptyUsername
	}
	if len(password) < auth.MinPasswordLength {
		return core.User{}, ErrWeakPassword
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return core.User{}, ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User registered", applog.FieldUsername, username)
	return u, nil
}

// Login checks the password and issues a token. Unknown users and wrong
// passwords both yield auth.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (Token, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return Token{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, fmt.Errorf("load user: %w", err)
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		slog.WarnContext(ctx, "Login rejected", applog.FieldComponent, applog.ComponentAuth, applog.FieldUsername, u.Username, applog.FieldOperation, applog.OpLogin)
		return Token{}, err
	}
	signed, exp, err := s.tokens.Issue(u.Username)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (core.User, error) {
	username, err := s.tokens.Verify(raw)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("%w: %w", auth.ErrInvalidToken, ErrUserNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// ForgotPassword never reveals whether username exists.
func (s *AuthService) ForgotPassword(ctx context.Context, username string) string {
	if _, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username)); err == nil {
		slog.InfoContext(ctx, "Password reset requested", applog.FieldUsername, username)
	}
	return ResetMessage
}
