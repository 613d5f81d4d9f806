//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fluentup-app/fluentup/internal/api"
	"github.com/fluentup-app/fluentup/internal/auth"
	"github.com/fluentup-app/fluentup/internal/config"
	"github.com/fluentup-app/fluentup/internal/middleware"
	"github.com/fluentup-app/fluentup/internal/quota"
)

type TestEnv struct {
	RedisClient *redis.Client
	Server      *httptest.Server
	AuthSvc     *auth.Service
	QuotaSvc    *quota.Service
}

// EnvConfig tweaks the stack a test builds. Zero value gives the default
// quota of 10 per section across 17 sections with no rate limiting.
type EnvConfig struct {
	LoginRateLimit int // requests per minute, 0 disables
}

func SetupTestEnv(t *testing.T, envCfg EnvConfig) *TestEnv {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	creds, _ := json.Marshal(map[string]string{
		"alice": hash,
		"admin": hash,
	})

	authSvc, err := auth.NewService(config.AuthConfig{
		TokenSecret: "integration-secret-32-characters!!!!",
		TokenTTL:    time.Hour,
		Admins:      "admin",
		Credentials: string(creds),
		CookieName:  "fluentup_token",
	})
	if err != nil {
		t.Fatalf("building auth service: %v", err)
	}
	authHandler := auth.NewHandler(authSvc)

	quotaSvc := quota.NewService(quota.NewStore(nil), config.QuotaConfig{
		ListeningPerSection:     10,
		TranslationPerSection:   10,
		PronunciationPerSection: 10,
		SectionCount:            17,
	}, nil)
	quotaHandler := quota.NewHandler(quotaSvc)

	routerCfg := api.RouterConfig{}
	if envCfg.LoginRateLimit > 0 {
		limiter := middleware.NewRateLimiter(redisClient, envCfg.LoginRateLimit, 60)
		routerCfg.LoginRateLimiter = limiter.Middleware
	}

	router := api.NewRouter(routerCfg, api.HandlerSet{
		Login:   authHandler.Login,
		Session: authHandler.Session,

		GetUsage:       quotaHandler.GetUsage,
		IncrementUsage: quotaHandler.IncrementUsage,

		ListUsage:   quotaHandler.ListUsage,
		AdminAction: quotaHandler.AdminAction,

		AuthMiddleware:  auth.Middleware(authSvc),
		AdminMiddleware: auth.RequireAdmin(authSvc),

		RedisHealthy: func() bool {
			return redisClient.Ping(context.Background()).Err() == nil
		},
		StorageDurable: func() bool {
			return quotaSvc.StorageMode() == quota.ModeDurable
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	return &TestEnv{
		RedisClient: redisClient,
		Server:      server,
		AuthSvc:     authSvc,
		QuotaSvc:    quotaSvc,
	}
}

// Helper functions

func LoginUser(t *testing.T, env *TestEnv, userID, password string) string {
	t.Helper()
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", map[string]string{
		"userId":   userID,
		"password": password,
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	token, _ := result["token"].(string)
	if token == "" {
		t.Fatal("login response carried no token")
	}
	return token
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
