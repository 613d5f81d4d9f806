package auth

import (
	"encoding/json"
	"strings"

	"github.com/fluentup-app/fluentup/internal/identity"
)

// AdminSet holds the sanitized ids with admin rights. Parsed once from
// configuration and read-only afterwards.
type AdminSet map[string]struct{}

// Contains reports whether the (raw) user id belongs to the set.
func (s AdminSet) Contains(userID string) bool {
	_, ok := s[identity.Sanitize(userID)]
	return ok
}

// idFields are the object keys probed, in order, when an admin entry is a
// JSON object rather than a plain string.
var idFields = []string{"id", "userId", "user", "username", "name"}

// ParseAdminSet normalizes the configured admin list into an AdminSet.
// Deployments have supplied this value in several shapes over time, all of
// which stay supported:
//
//   - a comma- or whitespace-delimited list: "alice, bob carol"
//   - a JSON array of strings or of objects carrying an id-like field
//   - a JSON object mapping id to a truthy value or to an object with an
//     "admin" marker
//
// Every extracted id is sanitized; empty results are dropped.
func ParseAdminSet(raw string) AdminSet {
	set := make(AdminSet)
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return set
	}

	switch trimmed[0] {
	case '[':
		var items []any
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			for _, item := range items {
				set.add(idFromEntry(item))
			}
			return set
		}
	case '{':
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			for id, v := range obj {
				if truthy(v) {
					set.add(id)
				}
			}
			return set
		}
	}

	// Plain delimited list. Commas and whitespace both separate.
	for _, id := range strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}) {
		set.add(id)
	}
	return set
}

func (s AdminSet) add(id string) {
	if safe := identity.Sanitize(id); safe != "" {
		s[safe] = struct{}{}
	}
}

// idFromEntry extracts a user id from an array element: strings pass
// through, objects are probed for an id-like field.
func idFromEntry(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		for _, field := range idFields {
			if s, ok := v[field].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// truthy interprets a map value as a membership marker: booleans and
// numbers by value, non-empty strings except "false"/"0", and objects by
// their "admin"/"isAdmin" field.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "false" && t != "0"
	case map[string]any:
		if marker, ok := t["admin"]; ok {
			return truthy(marker)
		}
		if marker, ok := t["isAdmin"]; ok {
			return truthy(marker)
		}
		return false
	}
	return false
}
