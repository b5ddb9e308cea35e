package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quillworks/taskboard/internal/storage"
	"github.com/quillworks/taskboard/internal/types"
)

// jsonErrorResponse encodes a structured error payload for API clients.
type jsonErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteServiceUnavailable emits a structured 503 response with a short retry window.
func WriteServiceUnavailable(w http.ResponseWriter, message, details string) {
	if w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", strconv.Itoa(int((5 * time.Second).Seconds())))
	}
	WriteJSONError(w, http.StatusServiceUnavailable, message, details)
}

// WriteJSONError writes an error response encoded as JSON with the given status.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	payload := jsonErrorResponse{
		Error: strings.TrimSpace(message),
	}
	if detail := strings.TrimSpace(details); detail != "" {
		payload.Details = detail
	}
	writeJSON(w, status, payload)
}

// writeJSON encodes payload with the given status and no-store caching.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusForStoreError maps data-service errors onto HTTP status codes.
func statusForStoreError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrEmptyUpdate):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, storage.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
