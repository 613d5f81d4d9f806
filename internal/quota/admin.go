package quota

import (
	"encoding/json"
	"net/http"

	"github.com/fluentup-app/fluentup/internal/api"
)

// AdminItem is one listed record with its remaining quota attached.
type AdminItem struct {
	*Record
	Remaining Remaining `json:"remaining"`
}

// AdminListResponse is the shape of the admin GET endpoint.
type AdminListResponse struct {
	OK               bool             `json:"ok"`
	Items            []AdminItem      `json:"items"`
	Limits           Limits           `json:"limits"`
	PerSectionLimits map[Category]int `json:"perSectionLimits"`
	SectionCount     int              `json:"sectionCount"`
	Storage          Mode             `json:"storage"`
}

type AdminActionRequest struct {
	Action string `json:"action"`
	UserID string `json:"userId"`
}

// ListUsage returns every known record with remaining quota. Admin only.
func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListUsage(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	items := make([]AdminItem, 0, len(records))
	for _, rec := range records {
		items = append(items, AdminItem{Record: rec, Remaining: h.svc.Remaining(rec)})
	}

	api.JSON(w, http.StatusOK, AdminListResponse{
		OK:               true,
		Items:            items,
		Limits:           h.svc.Limits(),
		PerSectionLimits: h.svc.PerSectionLimits(),
		SectionCount:     h.svc.SectionCount(),
		Storage:          h.svc.StorageMode(),
	})
}

// AdminAction dispatches reset/delete/get for a single user. Admin only.
func (h *Handler) AdminAction(w http.ResponseWriter, r *http.Request) {
	var req AdminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if req.UserID == "" {
		api.HandleError(w, api.NewBadRequestError("userId is required"))
		return
	}

	switch req.Action {
	case "get":
		rec, err := h.svc.GetUsage(r.Context(), req.UserID)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		api.JSON(w, http.StatusOK, h.usageResponse(true, rec))

	case "reset":
		rec, err := h.svc.ResetUsage(r.Context(), req.UserID)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		api.JSON(w, http.StatusOK, h.usageResponse(true, rec))

	case "delete":
		if err := h.svc.DeleteUsage(r.Context(), req.UserID); err != nil {
			h.handleServiceError(w, err)
			return
		}
		api.JSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": req.UserID})

	case "":
		api.HandleError(w, api.NewBadRequestError("action is required"))

	default:
		api.HandleError(w, api.NewBadRequestError("unsupported action: "+req.Action))
	}
}
