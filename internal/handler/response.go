// Package handler provides the HTTP handlers for the REST API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"community-points-api/internal/apperror"
)

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// writeError maps domain errors to HTTP status codes. Unknown errors
// become an opaque 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		kind := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, kind = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status, kind = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status, kind = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status, kind = http.StatusConflict, "conflict"
		case errors.Is(err, apperror.ErrUnavailable):
			status, kind = http.StatusServiceUnavailable, "store_unavailable"
		}

		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message})
		return
	}

	log.Error().Err(err).Msg("unhandled error")
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}

// Pagination holds the per-request page bounds resolved against the
// configured defaults.
type Pagination struct {
	DefaultPerPage int
	MaxPerPage     int
}

// Parse reads page and per_page query parameters, falling back to the
// configured default and clamping to the configured maximum.
func (p Pagination) Parse(r *http.Request) (page, perPage int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	perPage = p.DefaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
		perPage = v
	}
	if perPage > p.MaxPerPage {
		perPage = p.MaxPerPage
	}
	return page, perPage
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
