package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-points-api/internal/apperror"
	"community-points-api/internal/model"
	"community-points-api/internal/pkg/lock"
	"community-points-api/internal/service"
	"community-points-api/internal/service/servicetest"
)

const (
	claimMin = 5
	claimMax = 20
)

func newPointsService(db *servicetest.MemDB, now time.Time) (*service.PointsService, *time.Time) {
	clock := now
	svc := service.NewPointsService(db, db, lock.NewUserLock(), claimMin, claimMax).
		WithClock(func() time.Time { return clock })
	return svc, &clock
}

func TestClaimGrantsOncePerDay(t *testing.T) {
	ctx := context.Background()
	db := servicetest.NewMemDB()
	db.SeedUser(1, "alice", "Alice", "alice@example.com")

	day1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	svc, clock := newPointsService(db, day1)

	// First claim of the day succeeds with an award in range.
	result, err := svc.Claim(ctx, 1)
	require.NoError(t, err)
	assert.True(t, result.Granted)
	assert.GreaterOrEqual(t, result.PointsAwarded, claimMin)
	assert.LessOrEqual(t, result.PointsAwarded, claimMax)
	assert.Equal(t, result.PointsAwarded, result.Balance)
	assert.Equal(t, "2025-06-01", result.LastClaimDate)

	// Later the same day the claim is rejected and the balance is untouched.
	*clock = time.Date(2025, 6, 1, 23, 30, 0, 0, time.Local)
	rejected, err := svc.Claim(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	require.NotNil(t, rejected)
	assert.False(t, rejected.Granted)
	assert.Equal(t, 30*time.Minute, rejected.NextEligibleIn)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, result.Balance, balance)

	// Just past midnight the gate reopens.
	*clock = time.Date(2025, 6, 2, 0, 0, 1, 0, time.Local)
	second, err := svc.Claim(ctx, 1)
	require.NoError(t, err)
	assert.True(t, second.Granted)
	assert.Equal(t, result.PointsAwarded+second.PointsAwarded, second.Balance)
}

func TestClaimConcurrentSameDay(t *testing.T) {
	ctx := context.Background()
	db := servicetest.NewMemDB()
	db.SeedUser(1, "alice", "Alice", "alice@example.com")

	svc, _ := newPointsService(db, time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local))

	const attempts = 16
	var wg sync.WaitGroup
	granted := make(chan int, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Claim(ctx, 1)
			if err == nil && result.Granted {
				granted <- result.PointsAwarded
			}
		}()
	}
	wg.Wait()
	close(granted)

	var awards []int
	for p := range granted {
		awards = append(awards, p)
	}
	require.Len(t, awards, 1, "exactly one concurrent claim may succeed")

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, awards[0], balance)
}

func TestClaimUnknownUser(t *testing.T) {
	svc, _ := newPointsService(servicetest.NewMemDB(), time.Now())

	_, err := svc.Claim(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestClaimStatus(t *testing.T) {
	ctx := context.Background()
	db := servicetest.NewMemDB()
	db.SeedUser(1, "alice", "Alice", "alice@example.com")

	svc, clock := newPointsService(db, time.Date(2025, 6, 1, 18, 0, 0, 0, time.Local))

	status, err := svc.ClaimStatus(ctx, 1)
	require.NoError(t, err)
	assert.True(t, status.Granted)
	assert.Empty(t, status.LastClaimDate)

	_, err = svc.Claim(ctx, 1)
	require.NoError(t, err)

	status, err = svc.ClaimStatus(ctx, 1)
	require.NoError(t, err)
	assert.False(t, status.Granted)
	assert.Equal(t, "2025-06-01", status.LastClaimDate)
	assert.Equal(t, 6*time.Hour, status.NextEligibleIn)

	// Status never consumes the claim for the next day.
	*clock = time.Date(2025, 6, 2, 9, 0, 0, 0, time.Local)
	status, err = svc.ClaimStatus(ctx, 1)
	require.NoError(t, err)
	assert.True(t, status.Granted)

	result, err := svc.Claim(ctx, 1)
	require.NoError(t, err)
	assert.True(t, result.Granted)
}

func TestGrantValidation(t *testing.T) {
	ctx := context.Background()
	db := servicetest.NewMemDB()
	db.SeedUser(1, "alice", "Alice", "alice@example.com")
	svc, _ := newPointsService(db, time.Now())

	_, err := svc.Grant(ctx, 1, 0, "zero")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = svc.Grant(ctx, 1, -5, "negative")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = svc.Grant(ctx, 42, 10, "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	balance, err := svc.Grant(ctx, 1, 10, "welcome bonus")
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestDeductRejectsNegativeBalance(t *testing.T) {
	ctx := context.Background()
	db := servicetest.NewMemDB()
	db.SeedUser(1, "alice", "Alice", "alice@example.com")
	svc, _ := newPointsService(db, time.Now())

	_, err := svc.Grant(ctx, 1, 10, "seed")
	require.NoError(t, err)

	// Overdraft is rejected and leaves the ledger unchanged.
	_, err = svc.Deduct(ctx, 1, 20, "too much", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	// An explicit override may take the balance below zero.
	balance, err = svc.Deduct(ctx, 1, 20, "penalty", true)
	require.NoError(t, err)
	assert.Equal(t, -10, balance)
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := servicetest.NewMemDB()
	db.SeedUser(1, "alice", "Alice", "alice@example.com")
	svc, _ := newPointsService(db, time.Now())

	_, err := svc.Grant(ctx, 1, 10, "first")
	require.NoError(t, err)
	_, err = svc.Grant(ctx, 1, 20, "second")
	require.NoError(t, err)
	_, err = svc.Deduct(ctx, 1, 5, "spend", false)
	require.NoError(t, err)

	page, err := svc.History(ctx, 1, 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "spend", page.Transactions[0].Note)
	assert.Equal(t, "second", page.Transactions[1].Note)

	rest, err := svc.History(ctx, 1, 2, 2, "")
	require.NoError(t, err)
	require.Len(t, rest.Transactions, 1)
	assert.Equal(t, "first", rest.Transactions[0].Note)

	adds, err := svc.History(ctx, 1, 1, 10, model.TxTypeAdd)
	require.NoError(t, err)
	assert.Equal(t, 2, adds.Total)
	for _, tx := range adds.Transactions {
		assert.Equal(t, model.TxTypeAdd, tx.Type)
	}

	_, err = svc.History(ctx, 1, 1, 10, "bogus")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
