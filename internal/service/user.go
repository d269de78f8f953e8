package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"community-points-api/internal/model"
)

// UserService handles member account bootstrap for externally issued
// identities.
type UserService struct {
	users UserStore
}

// NewUserService creates a new UserService instance.
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// EnsureUser ensures a user row exists for the authenticated identity,
// creating one on first contact and refreshing the profile fields when the
// identity provider reports new values.
func (s *UserService) EnsureUser(ctx context.Context, id int64, username, displayName, email string) (*model.User, bool, error) {
	user, created, err := s.users.GetOrCreate(ctx, id, username, displayName, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	if !created && username != "" &&
		(user.Username != username || user.DisplayName != displayName || user.Email != email) {
		if err := s.users.UpdateProfile(ctx, id, username, displayName, email); err != nil {
			// Non-fatal: the stale profile does not block the request.
			log.Warn().Err(err).Int64("user_id", id).Msg("failed to refresh user profile")
		} else {
			user.Username = username
			user.DisplayName = displayName
			user.Email = email
		}
	}

	return user, created, nil
}
