// Package auth is a placeholder authentication layer. It validates form input
// and stores a fixed demo token; it does not verify credentials.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenKey is the key/value store key the token lives under.
const TokenKey = "auth_token"

// DemoToken is the placeholder token written on login or signup.
const DemoToken = "demo_token"

const minPasswordLength = 6

// Validation messages shown inline by the UI.
const (
	MsgFillAllFields     = "Please fill in all fields"
	MsgPasswordsMismatch = "Passwords don't match"
	MsgPasswordTooShort  = "Password must be at least 6 characters"
)

// ValidationError is a user-facing input error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// User is the signed-in user.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DemoUser is reported when a token is present but no user is in memory.
var DemoUser = User{ID: "1", Name: "Demo User", Email: "demo@example.com"}

// Service is the authentication surface the API exposes.
type Service interface {
	Login(ctx context.Context, email, password string) (*User, error)
	Signup(ctx context.Context, name, email, password, confirm string) (*User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*User, error)
}

// TokenStore persists the auth token.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StubService accepts any well-formed input. It exists so the UI flows can be
// exercised before a real identity provider is wired in.
type StubService struct {
	tokens TokenStore
	delay  time.Duration
	logger *zap.Logger

	mu   sync.Mutex
	user *User
}

// NewStubService creates a stub. delay simulates provider latency.
func NewStubService(tokens TokenStore, delay time.Duration, logger *zap.Logger) *StubService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubService{tokens: tokens, delay: delay, logger: logger.With(zap.String("component", "auth"))}
}

func blank(fields ...string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return true
		}
	}
	return false
}

func (s *StubService) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Login signs in as the local part of email.
func (s *StubService) Login(ctx context.Context, email, password string) (*User, error) {
	if blank(email, password) {
		return nil, &ValidationError{Message: MsgFillAllFields}
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	name, _, _ := strings.Cut(email, "@")
	return s.signIn(ctx, User{ID: "1", Name: name, Email: email})
}

// Signup validates the registration form and signs in as name.
func (s *StubService) Signup(ctx context.Context, name, email, password, confirm string) (*User, error) {
	if blank(name, email, password, confirm) {
		return nil, &ValidationError{Message: MsgFillAllFields}
	}
	if password != confirm {
		return nil, &ValidationError{Message: MsgPasswordsMismatch}
	}
	if len(password) < minPasswordLength {
		return nil, &ValidationError{Message: MsgPasswordTooShort}
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	return s.signIn(ctx, User{ID: "1", Name: name, Email: email})
}

func (s *StubService) signIn(ctx context.Context, u User) (*User, error) {
	if err := s.tokens.Set(ctx, TokenKey, DemoToken); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()

	s.logger.Info("signed in", zap.String("email", u.Email))
	out := u
	return &out, nil
}

// Logout clears the token and the in-memory user.
func (s *StubService) Logout(ctx context.Context) error {
	if err := s.tokens.Delete(ctx, TokenKey); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return nil
}

// CurrentUser returns the signed-in user, the demo user when only a token
// survives a restart, or nil.
func (s *StubService) CurrentUser(ctx context.Context) (*User, error) {
	s.mu.Lock()
	u := s.user
	s.mu.Unlock()
	if u != nil {
		out := *u
		return &out, nil
	}

	token, ok, err := s.tokens.Get(ctx, TokenKey)
	if err != nil {
		return nil, err
	}
	if !ok || token == "" {
		return nil, nil
	}
	out := DemoUser
	return &out, nil
}
