package auth

import (
	"fmt"
	"time"

	"github.com/fluentup-app/fluentup/internal/config"
	"github.com/fluentup-app/fluentup/internal/identity"
)

// Service bundles token issuance/verification, the credential store and
// the admin set. All state is built once from configuration and read-only
// afterwards.
type Service struct {
	tokens     *TokenManager
	admins     AdminSet
	creds      CredentialStore
	cookieName string
}

// NewService builds the auth Service from configuration. A missing token
// secret or malformed credential map is a fatal configuration error.
func NewService(cfg config.AuthConfig) (*Service, error) {
	tokens, err := NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	creds, err := ParseCredentials(cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("loading credential store: %w", err)
	}
	return &Service{
		tokens:     tokens,
		admins:     ParseAdminSet(cfg.Admins),
		creds:      creds,
		cookieName: cfg.CookieName,
	}, nil
}

// Login verifies the password and issues a session token.
func (s *Service) Login(userID, password string) (string, time.Time, error) {
	if !identity.Valid(userID) {
		return "", time.Time{}, ErrBadCredentials
	}
	if err := s.creds.Verify(userID, password); err != nil {
		return "", time.Time{}, err
	}
	return s.tokens.Issue(userID)
}

// Verify validates a session token and returns its claims.
func (s *Service) Verify(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// IsAdmin reports whether the (raw) user id is in the admin set.
func (s *Service) IsAdmin(userID string) bool {
	return s.admins.Contains(userID)
}

// CookieName returns the session cookie name the middleware accepts.
func (s *Service) CookieName() string {
	return s.cookieName
}

// TokenTTL returns the configured session lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
