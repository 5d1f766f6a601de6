package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"libreplexity/internal/inference"
	"libreplexity/internal/pipeline"
	"libreplexity/pkg/types"
)

// ErrTooBusy is returned when a bounded resource has no free slot.
var ErrTooBusy = errors.New("server busy")

// statusFor maps well-known service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case inference.IsModelNotFound(err):
		return http.StatusNotFound
	case inference.IsEngineNotReady(err), inference.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrNoAutocomplete):
		return http.StatusNotImplemented
	case errors.Is(err, ErrTooBusy):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
