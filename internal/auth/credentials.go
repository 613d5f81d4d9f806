package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/fluentup-app/fluentup/internal/identity"
)

const bcryptCost = 12

// ErrNoCredentialStore means no credential map was configured; logins
// cannot be verified at all.
var ErrNoCredentialStore = errors.New("no credential store configured")

// ErrBadCredentials covers both an unknown user and a wrong password.
var ErrBadCredentials = errors.New("invalid user id or password")

// CredentialStore maps sanitized user id to a bcrypt hash or, for legacy
// deployments, a plaintext password. Parsed once from configuration.
type CredentialStore map[string]string

// ParseCredentials decodes the configured JSON credential object, keying
// each entry by the sanitized user id. An empty value yields an empty
// store, which rejects every login.
func ParseCredentials(raw string) (CredentialStore, error) {
	store := make(CredentialStore)
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return store, nil
	}

	var creds map[string]string
	if err := json.Unmarshal([]byte(trimmed), &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	for id, secret := range creds {
		if safe := identity.Sanitize(id); safe != "" {
			store[safe] = secret
		}
	}
	return store, nil
}

// Verify checks a password for the given (raw) user id. Bcrypt entries are
// recognized by their prefix; anything else is compared in constant time.
func (c CredentialStore) Verify(userID, password string) error {
	if len(c) == 0 {
		return ErrNoCredentialStore
	}

	secret, ok := c[identity.Sanitize(userID)]
	if !ok {
		// Burn a comparison anyway so a missing user costs the same as a
		// wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$12$invalidsaltinvalidsaltinvalidsaltinvalids"), []byte(password))
		return ErrBadCredentials
	}

	if strings.HasPrefix(secret, "$2a$") || strings.HasPrefix(secret, "$2b$") || strings.HasPrefix(secret, "$2y$") {
		if err := bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)); err != nil {
			return ErrBadCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(password)) != 1 {
		return ErrBadCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for a CredentialStore
// entry. Used by provisioning tooling and tests.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
