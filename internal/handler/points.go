package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"community-points-api/internal/apperror"
	"community-points-api/internal/middleware"
	"community-points-api/internal/model"
	"community-points-api/internal/service"
)

// PointsHandler handles the points economy endpoints: daily claim,
// privileged grants and deductions, balances, history and the leaderboard.
type PointsHandler struct {
	points      *service.PointsService
	leaderboard *service.LeaderboardService
	pagination  Pagination
}

// NewPointsHandler creates a new PointsHandler.
func NewPointsHandler(points *service.PointsService, leaderboard *service.LeaderboardService, pagination Pagination) *PointsHandler {
	return &PointsHandler{points: points, leaderboard: leaderboard, pagination: pagination}
}

type claimResponse struct {
	Success       bool   `json:"success"`
	ClaimPoints   int    `json:"claim_points"`
	UserPoints    int    `json:"user_points"`
	LastClaimDate string `json:"last_claim_date"`
}

// HandleClaim attempts the daily claim for the authenticated user.
func (h *PointsHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	result, err := h.points.Claim(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		Success:       true,
		ClaimPoints:   result.PointsAwarded,
		UserPoints:    result.Balance,
		LastClaimDate: result.LastClaimDate,
	})
}

type claimStatusResponse struct {
	CanClaim            bool   `json:"can_claim"`
	LastClaimDate       string `json:"last_claim_date,omitempty"`
	NextEligibleSeconds int64  `json:"next_eligible_seconds"`
}

// HandleClaimStatus reports daily claim eligibility without mutating.
func (h *PointsHandler) HandleClaimStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	status, err := h.points.ClaimStatus(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimStatusResponse{
		CanClaim:            status.Granted,
		LastClaimDate:       status.LastClaimDate,
		NextEligibleSeconds: int64(status.NextEligibleIn.Seconds()),
	})
}

type adjustRequest struct {
	UserID        int64  `json:"user_id"`
	Points        int    `json:"points"`
	Note          string `json:"note"`
	AllowNegative bool   `json:"allow_negative"`
}

type balanceResponse struct {
	Points int `json:"points"`
}

// HandleAdd grants points to a user. Admin only.
func (h *PointsHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Validation("invalid request body"))
		return
	}

	balance, err := h.points.Grant(r.Context(), req.UserID, req.Points, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Points: balance})
}

// HandleDeduct removes points from a user. Admin only.
func (h *PointsHandler) HandleDeduct(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Validation("invalid request body"))
		return
	}

	balance, err := h.points.Deduct(r.Context(), req.UserID, req.Points, req.Note, req.AllowNegative)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Points: balance})
}

// HandleBalance returns a user's current balance.
func (h *PointsHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := parseInt64(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperror.Validation("invalid user id"))
		return
	}

	balance, err := h.points.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Points: balance})
}

// HandleRank returns a user's leaderboard position.
func (h *PointsHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	userID, err := parseInt64(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperror.Validation("invalid user id"))
		return
	}

	rank, err := h.leaderboard.UserRank(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rank": rank})
}

// HandleTransactions returns a page of a user's ledger history, newest
// first. Totals travel in the x-wp-total / x-wp-totalpages headers the
// frontend pagination expects.
func (h *PointsHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := parseInt64(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperror.Validation("invalid user id"))
		return
	}

	page, perPage := h.pagination.Parse(r)
	history, err := h.points.History(r.Context(), userID, page, perPage, r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, err)
		return
	}

	transactions := history.Transactions
	if transactions == nil {
		transactions = []*model.PointsTransaction{}
	}
	w.Header().Set("x-wp-total", strconv.Itoa(history.Total))
	w.Header().Set("x-wp-totalpages", strconv.Itoa(history.TotalPages))
	writeJSON(w, http.StatusOK, transactions)
}

type leaderboardResponse struct {
	Leaderboard []*model.LeaderboardEntry `json:"leaderboard"`
	Pagination  paginationMeta            `json:"pagination"`
}

type paginationMeta struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// HandleLeaderboard returns one page of the ranked standings.
func (h *PointsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	page, perPage := h.pagination.Parse(r)

	board, err := h.leaderboard.GetLeaderboard(r.Context(), page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, leaderboardResponse{
		Leaderboard: board.Entries,
		Pagination:  paginationMeta{Page: board.Page, TotalPages: board.TotalPages},
	})
}
