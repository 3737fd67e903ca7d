package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"deckbrain/internal/contextutil"
	"deckbrain/internal/embed"
	"deckbrain/internal/storage"
	"deckbrain/internal/vectorindex"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// writeDomainError maps pipeline errors to HTTP status codes. The vector
// index being down is a 503; the embedding service being down is a 502;
// a missing record is a 404.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(r.Context())
	logger.ErrorContext(r.Context(), "request failed", "error", err)

	switch {
	case errors.Is(err, vectorindex.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Vector index unavailable")
	case errors.Is(err, embed.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "Embedding service unavailable")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}
