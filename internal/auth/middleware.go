package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fluentup-app/fluentup/internal/api"
)

type contextKey string

const userClaimsKey contextKey = "user_claims"

// Middleware authenticates requests via a bearer token or the session
// cookie. Expired and forged tokens both surface as a plain 401 so the
// response does not leak which case occurred; the distinction is logged.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r, svc.CookieName())
			if token == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := svc.Verify(token)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					slog.Debug("rejected expired token")
				} else {
					slog.Debug("rejected invalid token", "error", err)
				}
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route on admin membership. Must run after
// Middleware.
func RequireAdmin(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserClaims(r.Context())
			if claims == nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}
			if !svc.IsAdmin(claims.UserID) {
				api.HandleError(w, api.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserClaims returns the authenticated claims, or nil outside an
// authenticated request.
func GetUserClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userClaimsKey).(*Claims)
	return claims
}

func extractToken(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}
