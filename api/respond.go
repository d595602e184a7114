package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/garnizeh/clinicmatch/internal/ai"
	"github.com/garnizeh/clinicmatch/internal/matching"
	"github.com/garnizeh/clinicmatch/internal/validation"
	"github.com/garnizeh/clinicmatch/pkg/ollama"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// decodeJSON reads one JSON document from the body, capped at maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

// validate runs struct tags on req and writes a 400 listing the failed fields.
func validate(w http.ResponseWriter, req any) bool {
	err := validation.Struct(req)
	if err == nil {
		return true
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, map[string]any{"error": "validation failed", "fields": verr.Fields}, http.StatusBadRequest)
		return false
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
	return false
}

// writeError maps domain errors onto status codes. Anything unknown is a 500
// and its text is logged rather than returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, matching.ErrAuthorizationMismatch):
		http.Error(w, "Identity mismatch", http.StatusForbidden)
	case errors.Is(err, matching.ErrNotFound):
		http.Error(w, "Profile not found", http.StatusNotFound)
	case errors.Is(err, matching.ErrInvalidOperation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, matching.ErrInvalidSwipeType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ollama.ErrCircuitOpen):
		http.Error(w, "AI service temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, ai.ErrNoTemplate), errors.Is(err, ai.ErrEmptyOutput):
		logger.Error("ai generation", slog.Any("err", err), slog.String("path", r.URL.Path))
		http.Error(w, "Failed to generate text", http.StatusBadGateway)
	default:
		logger.Error("request failed", slog.Any("err", err), slog.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
