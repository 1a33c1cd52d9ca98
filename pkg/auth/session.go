package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

var (
	ErrNoSession    = errors.New("no active session")
	ErrTokenExpired = errors.New("session token expired")
)

// TokenSource supplies the bearer token attached to calls to the cart service.
type TokenSource interface {
	// Token returns the current token.
	// Returns ErrNoSession when no token is set and ErrTokenExpired when the token is past its expiry.
	Token(ctx context.Context) (string, error)
}

// SessionTokenSource holds the token issued at login.
// JWTs are inspected for their exp claim so an expired session is reported without a network call.
// The signature is not verified here; the cart service remains the authority. Opaque tokens never expire locally.
type SessionTokenSource struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	hasExpiry bool

	clockSkew time.Duration
	now       func() time.Time
}

// NewSessionTokenSource creates a token source for token. An empty token starts without a session.
func NewSessionTokenSource(token string, clockSkew time.Duration) *SessionTokenSource {
	s := &SessionTokenSource{clockSkew: clockSkew, now: time.Now}
	s.Set(token)
	return s
}

// Set replaces the token, e.g. after the user logged in again.
func (s *SessionTokenSource) Set(token string) {
	expiresAt, hasExpiry := expiryOf(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	s.hasExpiry = hasExpiry
}

// Clear drops the token at session end.
func (s *SessionTokenSource) Clear() {
	s.Set("")
}

func (s *SessionTokenSource) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", ErrNoSession
	}
	if s.hasExpiry && !s.now().Before(s.expiresAt.Add(s.clockSkew)) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, s.expiresAt.Format(time.RFC3339))
	}
	return s.token, nil
}

func expiryOf(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return time.Time{}, false
	}
	return parsed.Expiration()
}
