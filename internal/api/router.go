package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/fluentup-app/fluentup/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Login   http.HandlerFunc
	Session http.HandlerFunc

	// Usage handlers
	GetUsage       http.HandlerFunc
	IncrementUsage http.HandlerFunc

	// Admin handlers
	ListUsage   http.HandlerFunc
	AdminAction http.HandlerFunc

	// Middleware
	AuthMiddleware  func(http.Handler) http.Handler
	AdminMiddleware func(http.Handler) http.Handler

	// Health probes
	RedisHealthy   func() bool
	StorageDurable func() bool
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	LoginRateLimiter   func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — reports degraded when redis is down or the usage
	// store has fallen back to memory
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":  "healthy",
			"storage": "durable",
			"redis":   "healthy",
		}

		status := http.StatusOK

		if h.StorageDurable != nil && !h.StorageDurable() {
			health["storage"] = "memory"
			health["status"] = "degraded"
		} else if h.StorageDurable == nil {
			health["storage"] = "not configured"
		}

		if h.RedisHealthy != nil && !h.RedisHealthy() {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
		} else if h.RedisHealthy == nil {
			health["redis"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes — login is public and optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.LoginRateLimiter != nil {
					r.Use(cfg.LoginRateLimiter)
				}
				r.Post("/login", h.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Get("/session", h.Session)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/usage", func(r chi.Router) {
				r.Get("/", h.GetUsage)
				r.Post("/", h.IncrementUsage)
			})

			// Admin surface
			r.Route("/admin/usage", func(r chi.Router) {
				r.Use(h.AdminMiddleware)
				r.Get("/", h.ListUsage)
				r.Post("/", h.AdminAction)
			})
		})
	})

	return r
}
