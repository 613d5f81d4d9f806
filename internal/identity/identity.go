// Package identity normalizes untrusted user identifiers into a stable,
// storage-safe alphabet. The sanitized form is used as the storage key for
// usage records and as the lookup key for admin membership.
package identity

import "strings"

// Sanitize trims surrounding whitespace and replaces every character outside
// [A-Za-z0-9._-] with an underscore. The result is safe to embed in object
// keys and URL paths. An empty result means the input carried no usable
// identity and must be rejected by the caller.
//
// Sanitize is deterministic and idempotent.
func Sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Valid reports whether raw sanitizes to a non-empty identifier.
func Valid(raw string) bool {
	return Sanitize(raw) != ""
}
