package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters-long"

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	assert.ErrorIs(t, err, ErrNoSigningSecret)
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := mgr.Issue("josé@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "josé@example.com", claims.UserID)
	assert.Equal(t, "jos__example.com", claims.SafeID)
	assert.Equal(t, "fluentup", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, -time.Minute)
	require.NoError(t, err)

	token, _, err := mgr.Issue("alice")
	require.NoError(t, err)

	_, err = mgr.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_TamperedToken(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	token, _, err := mgr.Issue("alice")
	require.NoError(t, err)

	// Flip one character in the signature segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)
	tampered := strings.Join(parts, ".")

	_, err = mgr.Verify(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewTokenManager("another-secret-also-32-characters-xx", time.Hour)
	require.NoError(t, err)

	token, _, err := mgr.Issue("alice")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_GarbageToken(t *testing.T) {
	mgr, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	for _, bad := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := mgr.Verify(bad)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", bad)
	}
}
