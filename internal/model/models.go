// Package model defines the data models for the community points API.
package model

import "time"

// User represents a community member. Identity is issued by the external
// auth provider; rows are created lazily on first authenticated request.
type User struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       string    `db:"email" json:"email"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PointsTransaction is one append-only entry in the points ledger.
// The magnitude is always positive; Type carries the sign.
type PointsTransaction struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Points    int       `db:"points" json:"points"`
	Type      string    `db:"type" json:"type"`
	Note      string    `db:"note" json:"note"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Transaction types for the ledger.
const (
	TxTypeAdd      = "add"
	TxTypeSubtract = "subtract"
)

// Ledger notes for system-generated transactions.
const (
	NoteDailyClaim = "Daily claim"
)

// Signed returns the signed contribution of the transaction to a balance.
func (t *PointsTransaction) Signed() int {
	if t.Type == TxTypeSubtract {
		return -t.Points
	}
	return t.Points
}

// LeaderboardEntry is one row of the ranked leaderboard projection.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Total    int    `json:"total"`
	Tier     string `json:"tier"`
}

// LeaderboardRow is the raw per-user aggregate before rank assignment.
type LeaderboardRow struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
	Total    int    `db:"total"`
}

// Comment is a threaded comment on a content item. ParentID 0 marks a
// top-level comment; replies carry the top-level comment's id and may not
// themselves receive replies.
type Comment struct {
	ID        int64      `db:"id" json:"id"`
	PostID    int64      `db:"post_id" json:"post_id"`
	AuthorID  int64      `db:"author_id" json:"author_id"`
	ParentID  int64      `db:"parent_id" json:"parent_id"`
	Content   string     `db:"content" json:"content"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	Children  []*Comment `json:"children"`
}

// IsTopLevel reports whether the comment can receive replies.
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == 0
}

// RatingData holds the three rating dimensions, each an integer in [1,5].
type RatingData struct {
	Skill      int `json:"skill"`
	Quality    int `json:"quality"`
	Usefulness int `json:"usefulness"`
}

// SeminarRating is a write-once rating of a seminar by one user.
type SeminarRating struct {
	SeminarID int64      `db:"seminar_id" json:"seminar_id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Rating    RatingData `json:"rating_data"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// RatingEntry is a seminar rating joined with the rater's public identity,
// as returned by the ratings listing.
type RatingEntry struct {
	UserID      int64      `json:"user_id"`
	DisplayName string     `json:"user_display_name"`
	Email       string     `json:"user_email"`
	Rating      RatingData `json:"rating_data"`
	CreatedAt   time.Time  `json:"created_at"`
}
