package identity

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var safeAlphabet = regexp.MustCompile(`^[A-Za-z0-9._-]*$`)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "alice", "alice"},
		{"preserves allowed punctuation", "alice.b_c-d", "alice.b_c-d"},
		{"trims whitespace", "  alice  ", "alice"},
		{"replaces spaces", "alice smith", "alice_smith"},
		{"replaces path separators", "../etc/passwd", ".._etc_passwd"},
		{"replaces backslashes", `a\b\c`, "a_b_c"},
		{"replaces unicode", "josé@example.com", "jos__example.com"},
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"digits", "user42", "user42"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Sanitize(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Regexp(t, safeAlphabet, got)
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{"alice", "a b/c", "  x  ", "über.user", "../..", "日本語"}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("bob"))
	assert.True(t, Valid(" bob "))
	assert.False(t, Valid(""))
	assert.False(t, Valid("   "))
}
