package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/security"
)

// ProblemDetails is an RFC 7807 error document.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func respondError(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondDomainError maps lifecycle and validation errors onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrJobNotFound):
		respondError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, core.ErrAlreadyEnqueued):
		respondError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, core.ErrInvalidDecision), errors.Is(err, core.ErrInvalidFilter),
		errors.Is(err, security.ErrInvalidFilename), errors.Is(err, security.ErrUnsupportedUpload):
		respondError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, core.ErrNoCandidate):
		respondError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.Is(err, security.ErrUploadTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", err.Error())
	case errors.Is(err, core.ErrUploadsDisabled):
		respondError(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
	}
}
