package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Quota   QuotaConfig
	Auth    AuthConfig
	Redis   RedisConfig
	NATS    NATSConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// CORSOrigins is a comma-separated allow list for browser clients.
	CORSOrigins []string
}

// StorageConfig describes the durable S3 backend. An empty Bucket means the
// service runs on the volatile in-memory store from the start.
type StorageConfig struct {
	Bucket string
	Region string
	Prefix string
	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string
}

func (c StorageConfig) Durable() bool {
	return c.Bucket != ""
}

// QuotaConfig carries the raw per-section caps before they are scaled by
// SectionCount. A cap of zero means the category is unlimited.
type QuotaConfig struct {
	ListeningPerSection     int
	TranslationPerSection   int
	PronunciationPerSection int
	SectionCount            int
}

type AuthConfig struct {
	// TokenSecret signs session tokens. Required.
	TokenSecret string
	TokenTTL    time.Duration
	// Admins is the raw admin-set value; parsed by auth.ParseAdminSet.
	Admins string
	// Credentials is a JSON object mapping user id to a bcrypt hash or
	// plaintext password.
	Credentials string
	CookieName  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type NATSConfig struct {
	URL string
}

func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        k.String("server.host"),
			Port:        k.Int("server.port"),
			CORSOrigins: splitList(k.String("server.cors.origins")),
		},
		Storage: StorageConfig{
			Bucket:   k.String("storage.s3.bucket"),
			Region:   k.String("storage.s3.region"),
			Prefix:   k.String("storage.s3.prefix"),
			Endpoint: k.String("storage.s3.endpoint"),
		},
		Quota: QuotaConfig{
			ListeningPerSection:     k.Int("quota.listening.per.section"),
			TranslationPerSection:   k.Int("quota.translation.per.section"),
			PronunciationPerSection: k.Int("quota.pronunciation.per.section"),
			SectionCount:            k.Int("quota.section.count"),
		},
		Auth: AuthConfig{
			TokenSecret: k.String("auth.token.secret"),
			Admins:      k.String("auth.admins"),
			Credentials: k.String("auth.credentials"),
			CookieName:  k.String("auth.cookie.name"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "usage"
	}
	if cfg.Quota.SectionCount == 0 {
		cfg.Quota.SectionCount = 1
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "fluentup_token"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	ttlStr := k.String("auth.token.ttl")
	if ttlStr == "" {
		ttlStr = "24h"
	}
	cfg.Auth.TokenTTL, err = time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("parsing auth token ttl: %w", err)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
