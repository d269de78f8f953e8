package service

import (
	"context"
	"errors"
	"fmt"

	"community-points-api/internal/apperror"
	"community-points-api/internal/model"
	"community-points-api/internal/repository"
)

// Leaderboard tiers, a pure function of rank.
const (
	TierGold   = "gold"
	TierSilver = "silver"
	TierBronze = "bronze"
	TierMember = "member"
)

// Leaderboard is one page of the ranked standings.
type Leaderboard struct {
	Entries    []*model.LeaderboardEntry
	Page       int
	TotalPages int
}

// LeaderboardService ranks members by total balance. Ordering is total
// descending with ascending user ID breaking ties, so concatenating all
// pages yields one strict total order.
type LeaderboardService struct {
	users  UserStore
	ledger LedgerStore
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(users UserStore, ledger LedgerStore) *LeaderboardService {
	return &LeaderboardService{users: users, ledger: ledger}
}

// GetLeaderboard returns one page of entries with 1-based global ranks.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, page, perPage int) (*Leaderboard, error) {
	if page < 1 {
		page = 1
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	offset := pageOffset(page, perPage)
	rows, err := s.ledger.LeaderboardPage(ctx, offset, perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	entries := make([]*model.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		rank := offset + i + 1
		entries = append(entries, &model.LeaderboardEntry{
			Rank:     rank,
			UserID:   row.UserID,
			Username: row.Username,
			Total:    row.Total,
			Tier:     TierForRank(rank),
		})
	}

	return &Leaderboard{
		Entries:    entries,
		Page:       page,
		TotalPages: totalPages(count, perPage),
	}, nil
}

// UserRank returns the user's 1-based position in the standings.
func (s *LeaderboardService) UserRank(ctx context.Context, userID int64) (int, error) {
	rank, err := s.ledger.UserRank(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, apperror.NotFound("user", userID)
		}
		return 0, fmt.Errorf("failed to get rank: %w", err)
	}
	return rank, nil
}

// TierForRank maps a rank to its badge tier: 1 is gold, 2-3 silver,
// 4-5 bronze, everything below is a plain member.
func TierForRank(rank int) string {
	switch {
	case rank == 1:
		return TierGold
	case rank >= 2 && rank <= 3:
		return TierSilver
	case rank >= 4 && rank <= 5:
		return TierBronze
	default:
		return TierMember
	}
}
