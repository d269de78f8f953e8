package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"community-points-api/internal/apperror"
	"community-points-api/internal/model"
	"community-points-api/internal/repository"
)

// CommentPage is one page of top-level comments with replies embedded.
type CommentPage struct {
	Comments []*model.Comment
	Pages    int
}

// CommentService implements the two-level comment thread rules: top-level
// comments are listed newest first, replies stay chronological under their
// parent, and a reply can never itself receive replies.
type CommentService struct {
	store   CommentStore
	users   UserStore
	isAdmin func(int64) bool
}

// NewCommentService creates a new CommentService instance. isAdmin decides
// who may delete other members' comments.
func NewCommentService(store CommentStore, users UserStore, isAdmin func(int64) bool) *CommentService {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &CommentService{store: store, users: users, isAdmin: isAdmin}
}

func validContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.Validation("comment content must not be empty")
	}
	return content, nil
}

// Create posts a new top-level comment.
func (s *CommentService) Create(ctx context.Context, postID, authorID int64, content string) (*model.Comment, error) {
	content, err := validContent(content)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Create(ctx, postID, authorID, 0, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	c.Children = []*model.Comment{}
	return c, nil
}

// Reply posts a reply to a top-level comment. Replying to a reply is
// rejected, so threads never nest beyond one level and a reply's parent is
// always the top-level comment's id.
func (s *CommentService) Reply(ctx context.Context, parentID, authorID int64, content string) (*model.Comment, error) {
	content, err := validContent(content)
	if err != nil {
		return nil, err
	}

	parent, err := s.store.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, apperror.NotFound("comment", parentID)
		}
		return nil, fmt.Errorf("failed to load parent comment: %w", err)
	}
	if !parent.IsTopLevel() {
		return nil, apperror.Validation("replies to replies are not allowed")
	}

	c, err := s.store.Create(ctx, parent.PostID, authorID, parent.ID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create reply: %w", err)
	}
	return c, nil
}

// Update edits a comment's content. Only the original author may edit;
// the check runs against the stored author at mutation time, never against
// client-supplied state.
func (s *CommentService) Update(ctx context.Context, commentID, editorID int64, content string) (*model.Comment, error) {
	content, err := validContent(content)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, apperror.NotFound("comment", commentID)
		}
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	if existing.AuthorID != editorID {
		return nil, apperror.Forbidden("only the author can edit this comment")
	}

	updated, err := s.store.UpdateContent(ctx, commentID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return updated, nil
}

// Delete removes a comment and its direct replies. Allowed for the author
// and for admins.
func (s *CommentService) Delete(ctx context.Context, commentID, requesterID int64) error {
	existing, err := s.store.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return apperror.NotFound("comment", commentID)
		}
		return fmt.Errorf("failed to load comment: %w", err)
	}
	if existing.AuthorID != requesterID && !s.isAdmin(requesterID) {
		return apperror.Forbidden("only the author can delete this comment")
	}

	if err := s.store.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// List returns one page of a post's top-level comments, newest first, each
// with its full reply thread embedded oldest-first.
func (s *CommentService) List(ctx context.Context, postID int64, page, perPage int) (*CommentPage, error) {
	comments, total, err := s.store.ListByPost(ctx, postID, pageOffset(page, perPage), perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	if comments == nil {
		comments = []*model.Comment{}
	}
	return &CommentPage{
		Comments: comments,
		Pages:    totalPages(total, perPage),
	}, nil
}
