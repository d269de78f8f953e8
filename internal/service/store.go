// Package service provides business logic implementations.
//
// Services accept store interfaces so the business rules can be exercised
// against in-memory fakes; the repository package provides the PostgreSQL
// implementations.
package service

import (
	"context"
	"time"

	"community-points-api/internal/model"
)

// UserStore is the user persistence contract.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetOrCreate(ctx context.Context, id int64, username, displayName, email string) (*model.User, bool, error)
	UpdateProfile(ctx context.Context, id int64, username, displayName, email string) error
	Exists(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}

// LedgerStore is the points ledger persistence contract. Implementations
// return the repository sentinel errors (ErrUserNotFound, ErrAlreadyClaimed,
// ErrInsufficientPoints) for the named domain conditions.
type LedgerStore interface {
	Add(ctx context.Context, userID int64, points int, note string) (*model.PointsTransaction, error)
	Deduct(ctx context.Context, userID int64, points int, note string, allowNegative bool) (*model.PointsTransaction, error)
	Balance(ctx context.Context, userID int64) (int, error)
	History(ctx context.Context, userID int64, offset, limit int, typeFilter string) ([]*model.PointsTransaction, int, error)
	ClaimDaily(ctx context.Context, userID int64, claimDate time.Time, points int) (*model.PointsTransaction, error)
	LastClaimDate(ctx context.Context, userID int64) (time.Time, bool, error)
	LeaderboardPage(ctx context.Context, offset, limit int) ([]*model.LeaderboardRow, error)
	UserRank(ctx context.Context, userID int64) (int, error)
}

// CommentStore is the comment persistence contract.
type CommentStore interface {
	Create(ctx context.Context, postID, authorID, parentID int64, content string) (*model.Comment, error)
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	UpdateContent(ctx context.Context, id int64, content string) (*model.Comment, error)
	Delete(ctx context.Context, id int64) error
	ListByPost(ctx context.Context, postID int64, offset, limit int) ([]*model.Comment, int, error)
}

// RatingStore is the seminar rating persistence contract.
type RatingStore interface {
	Insert(ctx context.Context, seminarID, userID int64, rating model.RatingData) error
	ListBySeminar(ctx context.Context, seminarID int64) ([]*model.RatingEntry, error)
}

// totalPages computes page-based pagination: ceil(total / perPage).
func totalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// pageOffset converts a 1-based page to a row offset, clamping page to 1.
func pageOffset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}
