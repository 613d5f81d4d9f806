package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the envelope for every failed request.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// JSON writes v as the response body. Payload shapes are owned by the
// handlers; there is no success envelope beyond their own "ok" field.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JSONError writes a standard {ok:false, error} body.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{OK: false, Error: message})
}
