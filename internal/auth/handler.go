package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fluentup-app/fluentup/internal/api"
	"github.com/fluentup-app/fluentup/internal/identity"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

type LoginRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	OK        bool      `json:"ok"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	SafeID    string    `json:"safeId"`
	Admin     bool      `json:"admin"`
}

type SessionResponse struct {
	OK        bool      `json:"ok"`
	UserID    string    `json:"userId"`
	SafeID    string    `json:"safeId"`
	Admin     bool      `json:"admin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login verifies a user id + password pair and issues a session token. The
// token is also set as a cookie for browser clients.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	token, expiresAt, err := h.svc.Login(req.UserID, req.Password)
	if err != nil {
		if errors.Is(err, ErrNoCredentialStore) {
			slog.Error("login attempted with no credential store configured")
			api.HandleError(w, api.ErrInternalServer)
			return
		}
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.svc.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	api.JSON(w, http.StatusOK, LoginResponse{
		OK:        true,
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    req.UserID,
		SafeID:    identity.Sanitize(req.UserID),
		Admin:     h.svc.IsAdmin(req.UserID),
	})
}

// Session returns the identity and expiry behind the presented token.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims := GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	api.JSON(w, http.StatusOK, SessionResponse{
		OK:        true,
		UserID:    claims.UserID,
		SafeID:    claims.SafeID,
		Admin:     h.svc.IsAdmin(claims.UserID),
		ExpiresAt: claims.ExpiresAt.Time,
	})
}
