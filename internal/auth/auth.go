// Package auth guards the admin console.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gulf-store/internal/kv"
	"gulf-store/internal/tables"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrDenied is returned for any credential mismatch.
var ErrDenied = errors.New("auth: invalid credentials")

// Credentials are the values typed into the admin login form.
type Credentials struct {
	Username string `json:"username" schema:"username"`
	Password string `json:"password" schema:"password"`
}

// Authenticator decides whether credentials grant admin access.
type Authenticator interface {
	Verify(ctx context.Context, c Credentials) error
}

// BcryptAuthenticator checks a single operator account whose password is
// stored as a bcrypt hash.
type BcryptAuthenticator struct {
	username string
	hash     []byte
}

// NewBcrypt returns an authenticator for username and a bcrypt hash.
func NewBcrypt(username, passwordHash string) (*BcryptAuthenticator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("auth: username required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("parse password hash: %w", err)
	}
	return &BcryptAuthenticator{username: username, hash: []byte(passwordHash)}, nil
}

// HashPassword produces a hash suitable for NewBcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify trims both inputs, then compares the username in constant time and
// the password against the hash.
func (a *BcryptAuthenticator) Verify(_ context.Context, c Credentials) error {
	user := strings.TrimSpace(c.Username)
	pass := strings.TrimSpace(c.Password)
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(pass))
	if !userOK || passErr != nil {
		return ErrDenied
	}
	return nil
}

// Session persists the admin-mode flag and hands each successful login a
// token. Tokens live in memory, so a restart asks the operator to log in again.
type Session struct {
	auth   Authenticator
	store  *kv.Store
	logger *slog.Logger

	mu     sync.Mutex
	tokens map[string]struct{}
}

// NewSession ties an authenticator to the persisted admin flag.
func NewSession(a Authenticator, store *kv.Store, logger *slog.Logger) *Session {
	return &Session{
		auth:   a,
		store:  store,
		logger: logger.With("component", "auth"),
		tokens: map[string]struct{}{},
	}
}

// Login verifies c and, on success, enters admin mode and returns the token
// that identifies this client. Mismatches return ErrDenied and change nothing.
func (s *Session) Login(ctx context.Context, c Credentials) (string, error) {
	if err := s.auth.Verify(ctx, c); err != nil {
		s.logger.Info("admin login rejected")
		return "", err
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()
	if err := kv.Save(ctx, s.store, tables.AdminAuth, true); err != nil {
		s.logger.Warn("admin flag not persisted", "error", err)
	}
	s.logger.Info("admin login")
	return token, nil
}

// Logout revokes token. Admin mode ends once no token is left.
func (s *Session) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	remaining := len(s.tokens)
	s.mu.Unlock()
	if remaining > 0 {
		return nil
	}
	if err := kv.Delete(ctx, s.store, tables.KeyAdminAuth); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("admin logout")
	return nil
}

// Authenticated reports whether admin mode is on.
func (s *Session) Authenticated(ctx context.Context) bool {
	return kv.Load(ctx, s.store, tables.AdminAuth)
}

// Valid reports whether token belongs to a logged-in client while admin mode
// is on.
func (s *Session) Valid(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	_, ok := s.tokens[token]
	s.mu.Unlock()
	return ok && s.Authenticated(ctx)
}
