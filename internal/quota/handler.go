package quota

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/fluentup-app/fluentup/internal/api"
	"github.com/fluentup-app/fluentup/internal/auth"
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

// UsageResponse is the shared success shape of the usage endpoints.
type UsageResponse struct {
	OK               bool             `json:"ok"`
	Usage            *Record          `json:"usage"`
	Limits           Limits           `json:"limits"`
	PerSectionLimits map[Category]int `json:"perSectionLimits"`
	SectionCount     int              `json:"sectionCount"`
	Remaining        Remaining        `json:"remaining"`
	Storage          Mode             `json:"storage"`
}

// LimitExceeded describes the rejected increment in an over-limit
// response.
type LimitExceeded struct {
	Type  Category `json:"type"`
	Limit Limit    `json:"limit"`
	Used  int      `json:"used"`
}

// ExceededResponse carries the over-limit error together with the current
// (unmodified) usage snapshot, so the client can render remaining quota
// without a second round trip.
type ExceededResponse struct {
	UsageResponse
	Error         string        `json:"error"`
	LimitExceeded LimitExceeded `json:"limitExceeded"`
}

type IncrementRequest struct {
	Type   string   `json:"type" validate:"required"`
	Amount *float64 `json:"amount"`
}

func (h *Handler) usageResponse(ok bool, rec *Record) UsageResponse {
	return UsageResponse{
		OK:               ok,
		Usage:            rec,
		Limits:           h.svc.Limits(),
		PerSectionLimits: h.svc.PerSectionLimits(),
		SectionCount:     h.svc.SectionCount(),
		Remaining:        h.svc.Remaining(rec),
		Storage:          h.svc.StorageMode(),
	}
}

// GetUsage returns the authenticated user's counters, limits and
// remaining quota.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	rec, err := h.svc.GetUsage(r.Context(), claims.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, h.usageResponse(true, rec))
}

// IncrementUsage adds to one category's counter, enforcing the overall
// cap. An over-cap increment returns 429 with the untouched snapshot.
func (h *Handler) IncrementUsage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req IncrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	amount := float64(1)
	if req.Amount != nil {
		amount = *req.Amount
	}

	rec, err := h.svc.IncrementUsage(r.Context(), claims.UserID, req.Type, amount)
	if err != nil {
		var exceeded *ExceededError
		if errors.As(err, &exceeded) {
			api.JSON(w, http.StatusTooManyRequests, ExceededResponse{
				UsageResponse: h.usageResponse(false, rec),
				Error:         exceeded.Error(),
				LimitExceeded: LimitExceeded{
					Type:  exceeded.Category,
					Limit: exceeded.Limit,
					Used:  exceeded.Used,
				},
			})
			return
		}
		h.handleServiceError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, h.usageResponse(true, rec))
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidIdentity):
		api.HandleError(w, api.ErrInvalidIdentity)
	case errors.Is(err, ErrUnsupportedCategory):
		api.HandleError(w, api.NewBadRequestError(ErrUnsupportedCategory.Error()))
	default:
		var storageErr *StorageError
		if errors.As(err, &storageErr) {
			slog.Error("usage storage error", "op", storageErr.Op, "error", storageErr.Err)
			api.HandleError(w, api.ErrStorageUnavailable)
			return
		}
		slog.Error("usage service error", "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}
