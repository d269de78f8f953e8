package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"community-points-api/internal/model"
)

// RatingRepository handles write-once seminar ratings.
type RatingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository creates a new RatingRepository instance.
func NewRatingRepository(pool *pgxpool.Pool) *RatingRepository {
	return &RatingRepository{pool: pool}
}

// Insert records a rating. The composite primary key makes the operation
// write-once: a second submission for the same (seminar, user) affects no
// rows and fails with ErrDuplicateRating.
func (r *RatingRepository) Insert(ctx context.Context, seminarID, userID int64, rating model.RatingData) error {
	const query = `
		INSERT INTO seminar_ratings (seminar_id, user_id, skill, quality, usefulness, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, seminarID, userID,
		rating.Skill, rating.Quality, rating.Usefulness)
	if err != nil {
		return fmt.Errorf("failed to insert rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateRating
	}
	return nil
}

// ListBySeminar retrieves all ratings for a seminar joined with the
// rater's public identity, oldest first.
func (r *RatingRepository) ListBySeminar(ctx context.Context, seminarID int64) ([]*model.RatingEntry, error) {
	const query = `
		SELECT sr.user_id, u.display_name, u.email, sr.skill, sr.quality, sr.usefulness, sr.created_at
		FROM seminar_ratings sr
		JOIN users u ON u.id = sr.user_id
		WHERE sr.seminar_id = $1
		ORDER BY sr.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, seminarID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	var entries []*model.RatingEntry
	for rows.Next() {
		var e model.RatingEntry
		err := rows.Scan(&e.UserID, &e.DisplayName, &e.Email,
			&e.Rating.Skill, &e.Rating.Quality, &e.Rating.Usefulness, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratings: %w", err)
	}

	return entries, nil
}
