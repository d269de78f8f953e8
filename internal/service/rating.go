package service

import (
	"context"
	"errors"
	"fmt"

	"community-points-api/internal/apperror"
	"community-points-api/internal/model"
	"community-points-api/internal/repository"
)

// RatingService implements write-once seminar ratings.
type RatingService struct {
	store RatingStore
	users UserStore
}

// NewRatingService creates a new RatingService instance.
func NewRatingService(store RatingStore, users UserStore) *RatingService {
	return &RatingService{store: store, users: users}
}

func validDimension(name string, value int) error {
	if value < 1 || value > 5 {
		return apperror.Validation(fmt.Sprintf("%s must be between 1 and 5", name))
	}
	return nil
}

// AddRating records a user's rating of a seminar. Each dimension must be
// in [1,5]; a second submission for the same seminar is rejected.
func (s *RatingService) AddRating(ctx context.Context, seminarID, userID int64, rating model.RatingData) error {
	if err := validDimension("skill", rating.Skill); err != nil {
		return err
	}
	if err := validDimension("quality", rating.Quality); err != nil {
		return err
	}
	if err := validDimension("usefulness", rating.Usefulness); err != nil {
		return err
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return apperror.NotFound("user", userID)
	}

	if err := s.store.Insert(ctx, seminarID, userID, rating); err != nil {
		if errors.Is(err, repository.ErrDuplicateRating) {
			return apperror.Conflict("you have already rated this seminar")
		}
		return fmt.Errorf("failed to add rating: %w", err)
	}
	return nil
}

// GetRatings returns all ratings for a seminar with rater identities.
func (s *RatingService) GetRatings(ctx context.Context, seminarID int64) ([]*model.RatingEntry, error) {
	entries, err := s.store.ListBySeminar(ctx, seminarID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ratings: %w", err)
	}
	if entries == nil {
		entries = []*model.RatingEntry{}
	}
	return entries, nil
}
