package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Token secret is required for every auth operation.
	if c.Auth.TokenSecret == "" {
		errs = append(errs, "AUTH_TOKEN_SECRET is required")
	} else if len(c.Auth.TokenSecret) < 32 {
		errs = append(errs, "AUTH_TOKEN_SECRET must be at least 32 characters")
	}

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "AUTH_TOKEN_TTL must be positive")
	}

	// Credentials must be a JSON object when set.
	if c.Auth.Credentials != "" {
		var creds map[string]string
		if err := json.Unmarshal([]byte(c.Auth.Credentials), &creds); err != nil {
			errs = append(errs, "AUTH_CREDENTIALS must be a JSON object of user id to password")
		}
	}

	// Negative caps make no sense; zero means unlimited.
	if c.Quota.ListeningPerSection < 0 {
		errs = append(errs, "QUOTA_LISTENING_PER_SECTION must not be negative")
	}
	if c.Quota.TranslationPerSection < 0 {
		errs = append(errs, "QUOTA_TRANSLATION_PER_SECTION must not be negative")
	}
	if c.Quota.PronunciationPerSection < 0 {
		errs = append(errs, "QUOTA_PRONUNCIATION_PER_SECTION must not be negative")
	}
	if c.Quota.SectionCount < 1 {
		errs = append(errs, "QUOTA_SECTION_COUNT must be at least 1")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.Redis.Enabled() && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Missing bucket is a supported mode, but worth a loud warning: all
	// counters are lost on restart.
	if !c.Storage.Durable() {
		slog.Warn("STORAGE_S3_BUCKET is empty — usage counters are held in memory only")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
