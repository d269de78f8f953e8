package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-points-api/internal/handler"
	"community-points-api/internal/middleware"
	"community-points-api/internal/model"
	"community-points-api/internal/pkg/lock"
	"community-points-api/internal/service"
	"community-points-api/internal/service/servicetest"
)

// testAuth injects the user ID a real token would carry, bypassing JWT
// verification which has its own tests.
func testAuth(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID > 0 {
				r = r.WithContext(middleware.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

type testAPI struct {
	db     *servicetest.MemDB
	points *service.PointsService
	router func(userID int64) http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db := servicetest.NewMemDB()
	points := service.NewPointsService(db, db, lock.NewUserLock(), 10, 10).
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local) })
	leaderboard := service.NewLeaderboardService(db, db)
	comments := service.NewCommentService(db.Comments(), db, func(id int64) bool { return id == 999 })
	ratings := service.NewRatingService(db, db)

	pagination := handler.Pagination{DefaultPerPage: 10, MaxPerPage: 50}
	pointsHandler := handler.NewPointsHandler(points, leaderboard, pagination)
	commentHandler := handler.NewCommentHandler(comments, pagination)
	ratingHandler := handler.NewRatingHandler(ratings)

	router := func(userID int64) http.Handler {
		r := chi.NewRouter()
		r.Route("/api", func(api chi.Router) {
			api.Get("/points/leaderboard", pointsHandler.HandleLeaderboard)
			api.Get("/comments", commentHandler.HandleList)
			api.Get("/seminars/{id}/ratings", ratingHandler.HandleList)

			api.Group(func(auth chi.Router) {
				auth.Use(testAuth(userID))
				auth.Post("/points/claim", pointsHandler.HandleClaim)
				auth.Get("/points/claim", pointsHandler.HandleClaimStatus)
				auth.Get("/points/user/{id}", pointsHandler.HandleBalance)
				auth.Get("/points/user/{id}/rank", pointsHandler.HandleRank)
				auth.Get("/points/user/{id}/transactions", pointsHandler.HandleTransactions)
				auth.Post("/comments", commentHandler.HandleCreate)
				auth.Put("/comments/{id}", commentHandler.HandleUpdate)
				auth.Delete("/comments/{id}", commentHandler.HandleDelete)
				auth.Post("/seminars/{id}/rating", ratingHandler.HandleAdd)
				auth.Post("/points/add", pointsHandler.HandleAdd)
				auth.Post("/points/deduct", pointsHandler.HandleDeduct)
			})
		})
		return r
	}

	return &testAPI{db: db, points: points, router: router}
}

func (a *testAPI) do(t *testing.T, userID int64, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	a.router(userID).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestClaimEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.db.SeedUser(1, "alice", "Alice", "")

	rec := api.do(t, 1, http.MethodPost, "/api/points/claim", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success       bool   `json:"success"`
		ClaimPoints   int    `json:"claim_points"`
		UserPoints    int    `json:"user_points"`
		LastClaimDate string `json:"last_claim_date"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 10, resp.ClaimPoints)
	assert.Equal(t, 10, resp.UserPoints)
	assert.Equal(t, "2025-06-01", resp.LastClaimDate)

	// Repeat same day gets a conflict
	rec = api.do(t, 1, http.MethodPost, "/api/points/claim", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp handler.ErrorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, "conflict", errResp.Error)
	assert.Contains(t, errResp.Message, "already claimed today")

	// Status reflects the consumed claim
	rec = api.do(t, 1, http.MethodGet, "/api/points/claim", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		CanClaim            bool  `json:"can_claim"`
		NextEligibleSeconds int64 `json:"next_eligible_seconds"`
	}
	decodeBody(t, rec, &status)
	assert.False(t, status.CanClaim)
	assert.Equal(t, int64(12*3600), status.NextEligibleSeconds)
}

func TestClaimRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, 0, http.MethodPost, "/api/points/claim", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdjustEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.db.SeedUser(1, "alice", "Alice", "")

	rec := api.do(t, 999, http.MethodPost, "/api/points/add", map[string]interface{}{
		"user_id": 1, "points": 100, "note": "event bonus",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var balance struct {
		Points int `json:"points"`
	}
	decodeBody(t, rec, &balance)
	assert.Equal(t, 100, balance.Points)

	// Overdraft rejected
	rec = api.do(t, 999, http.MethodPost, "/api/points/deduct", map[string]interface{}{
		"user_id": 1, "points": 150,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Overdraft with override allowed
	rec = api.do(t, 999, http.MethodPost, "/api/points/deduct", map[string]interface{}{
		"user_id": 1, "points": 150, "allow_negative": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &balance)
	assert.Equal(t, -50, balance.Points)

	// Unknown user
	rec = api.do(t, 999, http.MethodPost, "/api/points/add", map[string]interface{}{
		"user_id": 42, "points": 10,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.db.SeedUser(1, "alice", "Alice", "")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := api.points.Grant(ctx, 1, 10+i, "seed")
		require.NoError(t, err)
	}

	rec := api.do(t, 1, http.MethodGet, "/api/points/user/1/transactions?per_page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("x-wp-total"))
	assert.Equal(t, "2", rec.Header().Get("x-wp-totalpages"))

	var txs []*model.PointsTransaction
	decodeBody(t, rec, &txs)
	require.Len(t, txs, 2)
	assert.Equal(t, 12, txs[0].Points)
	assert.Equal(t, 11, txs[1].Points)
}

func TestLeaderboardEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.db.SeedUser(1, "alice", "Alice", "")
	api.db.SeedUser(2, "bob", "Bob", "")

	ctx := context.Background()
	_, err := api.points.Grant(ctx, 2, 50, "seed")
	require.NoError(t, err)

	rec := api.do(t, 0, http.MethodGet, "/api/points/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Leaderboard []struct {
			Rank     int    `json:"rank"`
			UserID   int64  `json:"user_id"`
			Username string `json:"username"`
			Total    int    `json:"total"`
			Tier     string `json:"tier"`
		} `json:"leaderboard"`
		Pagination struct {
			Page       int `json:"page"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, 1, resp.Leaderboard[0].Rank)
	assert.Equal(t, "bob", resp.Leaderboard[0].Username)
	assert.Equal(t, "gold", resp.Leaderboard[0].Tier)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, 1, resp.Pagination.TotalPages)

	rec = api.do(t, 1, http.MethodGet, "/api/points/user/2/rank", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rank struct {
		Rank int `json:"rank"`
	}
	decodeBody(t, rec, &rank)
	assert.Equal(t, 1, rank.Rank)
}

func TestCommentEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.db.SeedUser(1, "alice", "Alice", "")
	api.db.SeedUser(2, "bob", "Bob", "")

	// Top-level comment
	rec := api.do(t, 1, http.MethodPost, "/api/comments", map[string]interface{}{
		"post_id": 7, "content": "first!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var top model.Comment
	decodeBody(t, rec, &top)
	assert.Equal(t, int64(0), top.ParentID)

	// Reply
	rec = api.do(t, 2, http.MethodPost, "/api/comments", map[string]interface{}{
		"parent_id": top.ID, "content": "welcome",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var reply model.Comment
	decodeBody(t, rec, &reply)
	assert.Equal(t, top.ID, reply.ParentID)
	assert.Equal(t, top.PostID, reply.PostID)

	// Reply to a reply is a validation error
	rec = api.do(t, 1, http.MethodPost, "/api/comments", map[string]interface{}{
		"parent_id": reply.ID, "content": "nested",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty content
	rec = api.do(t, 1, http.MethodPost, "/api/comments", map[string]interface{}{
		"post_id": 7, "content": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Only the author may edit
	rec = api.do(t, 2, http.MethodPut, "/api/comments/1", map[string]interface{}{
		"content": "hijacked",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, 1, http.MethodPut, "/api/comments/1", map[string]interface{}{
		"content": "edited",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Listing embeds the reply thread
	rec = api.do(t, 0, http.MethodGet, "/api/comments?post_id=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Comments []*model.Comment `json:"comments"`
		Pages    int              `json:"pages"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Comments, 1)
	assert.Equal(t, "edited", list.Comments[0].Content)
	require.Len(t, list.Comments[0].Children, 1)
	assert.Equal(t, "welcome", list.Comments[0].Children[0].Content)

	// post_id is mandatory for listing
	rec = api.do(t, 0, http.MethodGet, "/api/comments", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Admin delete cascades
	rec = api.do(t, 999, http.MethodDelete, "/api/comments/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, 0, http.MethodGet, "/api/comments?post_id=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	assert.Empty(t, list.Comments)
}

func TestRatingEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.db.SeedUser(1, "alice", "Alice", "alice@example.com")

	body := map[string]interface{}{
		"ratingData": map[string]int{"skill": 5, "quality": 4, "usefulness": 3},
	}
	rec := api.do(t, 1, http.MethodPost, "/api/seminars/10/rating", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Write-once
	rec = api.do(t, 1, http.MethodPost, "/api/seminars/10/rating", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Out of range
	rec = api.do(t, 1, http.MethodPost, "/api/seminars/11/rating", map[string]interface{}{
		"ratingData": map[string]int{"skill": 6, "quality": 4, "usefulness": 3},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, 0, http.MethodGet, "/api/seminars/10/ratings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []*model.RatingEntry
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].UserID)
	assert.Equal(t, "Alice", entries[0].DisplayName)
	assert.Equal(t, 5, entries[0].Rating.Skill)
}
