package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"community-points-api/internal/apperror"
	"community-points-api/internal/middleware"
	"community-points-api/internal/model"
	"community-points-api/internal/service"
)

// RatingHandler handles the seminar rating endpoints.
type RatingHandler struct {
	ratings *service.RatingService
}

// NewRatingHandler creates a new RatingHandler.
func NewRatingHandler(ratings *service.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

type addRatingRequest struct {
	RatingData model.RatingData `json:"ratingData"`
}

type addRatingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleAdd records the authenticated user's rating of a seminar.
// Ratings are write-once; a repeat submission returns a conflict.
func (h *RatingHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	seminarID, err := parseInt64(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperror.Validation("invalid seminar id"))
		return
	}

	var req addRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Validation("invalid request body"))
		return
	}

	if err := h.ratings.AddRating(r.Context(), seminarID, userID, req.RatingData); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addRatingResponse{
		Success: true,
		Message: "rating submitted",
	})
}

// HandleList returns all ratings for a seminar.
func (h *RatingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	seminarID, err := parseInt64(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperror.Validation("invalid seminar id"))
		return
	}

	entries, err := h.ratings.GetRatings(r.Context(), seminarID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
