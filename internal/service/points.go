package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"community-points-api/internal/apperror"
	"community-points-api/internal/model"
	"community-points-api/internal/pkg/lock"
	"community-points-api/internal/repository"
)

// ClaimResult is the outcome of a daily claim attempt or status check.
type ClaimResult struct {
	Granted        bool
	PointsAwarded  int
	Balance        int
	LastClaimDate  string
	NextEligibleIn time.Duration
}

// HistoryPage is one page of a user's ledger history.
type HistoryPage struct {
	Transactions []*model.PointsTransaction
	Total        int
	TotalPages   int
}

// PointsService implements the points ledger and the daily claim gate.
//
// Claim eligibility is decided against the injected server clock only;
// client-supplied dates are never consulted, so a client cannot move its
// clock to claim twice or early.
type PointsService struct {
	users     UserStore
	ledger    LedgerStore
	locks     *lock.UserLock
	minPoints int
	maxPoints int
	now       func() time.Time
	randInt   func(n int) int
}

// NewPointsService creates a new PointsService instance. The claim award
// is drawn uniformly from [minPoints, maxPoints].
func NewPointsService(users UserStore, ledger LedgerStore, locks *lock.UserLock, minPoints, maxPoints int) *PointsService {
	return &PointsService{
		users:     users,
		ledger:    ledger,
		locks:     locks,
		minPoints: minPoints,
		maxPoints: maxPoints,
		now:       time.Now,
		randInt:   rand.Intn,
	}
}

// WithClock overrides the server clock source. Used by tests.
func (s *PointsService) WithClock(now func() time.Time) *PointsService {
	s.now = now
	return s
}

func (s *PointsService) requireUser(ctx context.Context, userID int64) error {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// Grant appends an 'add' transaction and returns the updated balance.
func (s *PointsService) Grant(ctx context.Context, userID int64, points int, note string) (int, error) {
	if points <= 0 {
		return 0, apperror.Validation("points must be a positive amount")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return 0, err
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	if _, err := s.ledger.Add(ctx, userID, points, note); err != nil {
		return 0, fmt.Errorf("failed to grant points: %w", err)
	}
	return s.ledger.Balance(ctx, userID)
}

// Deduct appends a 'subtract' transaction and returns the updated balance.
// Unless allowNegative is set, a deduction exceeding the current balance
// is rejected and the ledger stays unchanged.
func (s *PointsService) Deduct(ctx context.Context, userID int64, points int, note string, allowNegative bool) (int, error) {
	if points <= 0 {
		return 0, apperror.Validation("points must be a positive amount")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return 0, err
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	_, err := s.ledger.Deduct(ctx, userID, points, note, allowNegative)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			return 0, apperror.Validation("deduction would make the balance negative")
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, apperror.NotFound("user", userID)
		}
		return 0, fmt.Errorf("failed to deduct points: %w", err)
	}
	return s.ledger.Balance(ctx, userID)
}

// Balance returns the user's current points balance.
func (s *PointsService) Balance(ctx context.Context, userID int64) (int, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, userID)
}

// History returns a page of the user's transactions, newest first.
// typeFilter is "", "add" or "subtract".
func (s *PointsService) History(ctx context.Context, userID int64, page, perPage int, typeFilter string) (*HistoryPage, error) {
	if typeFilter != "" && typeFilter != model.TxTypeAdd && typeFilter != model.TxTypeSubtract {
		return nil, apperror.Validation("type must be 'add' or 'subtract'")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	transactions, total, err := s.ledger.History(ctx, userID, pageOffset(page, perPage), perPage, typeFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return &HistoryPage{
		Transactions: transactions,
		Total:        total,
		TotalPages:   totalPages(total, perPage),
	}, nil
}

// Claim attempts the daily claim for the user. At most one claim succeeds
// per user per server-side calendar date: the per-user lock serialises
// requests in process and the daily_claims primary key settles races
// across processes.
func (s *PointsService) Claim(ctx context.Context, userID int64) (*ClaimResult, error) {
	if s.now == nil {
		// No authoritative clock means claiming is disabled, never open.
		return nil, apperror.Unavailable("server time unavailable")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	serverNow := s.now()
	claimDate := startOfDay(serverNow)
	points := s.minPoints
	if s.maxPoints > s.minPoints {
		points += s.randInt(s.maxPoints - s.minPoints + 1)
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	_, err := s.ledger.ClaimDaily(ctx, userID, claimDate, points)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimed) {
			remaining := claimDate.Add(24 * time.Hour).Sub(serverNow)
			return &ClaimResult{
					Granted:        false,
					LastClaimDate:  claimDate.Format(time.DateOnly),
					NextEligibleIn: remaining,
				}, apperror.Conflict(fmt.Sprintf(
					"already claimed today, come back in %s", formatRemaining(remaining)))
		}
		return nil, fmt.Errorf("failed to claim daily points: %w", err)
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance after claim: %w", err)
	}

	return &ClaimResult{
		Granted:       true,
		PointsAwarded: points,
		Balance:       balance,
		LastClaimDate: claimDate.Format(time.DateOnly),
	}, nil
}

// ClaimStatus reports eligibility without mutating anything.
func (s *PointsService) ClaimStatus(ctx context.Context, userID int64) (*ClaimResult, error) {
	if s.now == nil {
		return nil, apperror.Unavailable("server time unavailable")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	last, claimed, err := s.ledger.LastClaimDate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get claim status: %w", err)
	}

	result := &ClaimResult{Granted: true}
	if !claimed {
		return result, nil
	}

	serverNow := s.now()
	result.LastClaimDate = last.Format(time.DateOnly)
	if sameDay(last, serverNow) {
		result.Granted = false
		result.NextEligibleIn = startOfDay(serverNow).Add(24 * time.Hour).Sub(serverNow)
	}
	return result, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}
