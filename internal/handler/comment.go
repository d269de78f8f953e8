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

// CommentHandler handles the threaded comment endpoints.
type CommentHandler struct {
	comments   *service.CommentService
	pagination Pagination
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(comments *service.CommentService, pagination Pagination) *CommentHandler {
	return &CommentHandler{comments: comments, pagination: pagination}
}

type listCommentsResponse struct {
	Comments []*model.Comment `json:"comments"`
	Pages    int              `json:"pages"`
}

// HandleList returns one page of a post's comment tree.
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	postID, err := parseInt64(r.URL.Query().Get("post_id"))
	if err != nil || postID <= 0 {
		writeError(w, apperror.Validation("post_id is required"))
		return
	}

	page, perPage := h.pagination.Parse(r)
	result, err := h.comments.List(r.Context(), postID, page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listCommentsResponse{
		Comments: result.Comments,
		Pages:    result.Pages,
	})
}

type createCommentRequest struct {
	PostID   int64  `json:"post_id"`
	ParentID int64  `json:"parent_id"`
	Content  string `json:"content"`
}

// HandleCreate posts a top-level comment, or a reply when parent_id is set.
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Validation("invalid request body"))
		return
	}

	var comment *model.Comment
	var err error
	if req.ParentID > 0 {
		comment, err = h.comments.Reply(r.Context(), req.ParentID, userID, req.Content)
	} else {
		if req.PostID <= 0 {
			writeError(w, apperror.Validation("post_id is required"))
			return
		}
		comment, err = h.comments.Create(r.Context(), req.PostID, userID, req.Content)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

// HandleUpdate edits a comment. Author only.
func (h *CommentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	commentID, err := parseInt64(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperror.Validation("invalid comment id"))
		return
	}

	var req updateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Validation("invalid request body"))
		return
	}

	comment, err := h.comments.Update(r.Context(), commentID, userID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// HandleDelete removes a comment and its replies. Author or admin.
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	commentID, err := parseInt64(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperror.Validation("invalid comment id"))
		return
	}

	if err := h.comments.Delete(r.Context(), commentID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
