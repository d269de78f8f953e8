package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-points-api/internal/model"
)

const txColumns = "id, user_id, points, type, note, created_at"

// signedExpr converts a ledger row to its signed balance contribution.
const signedExpr = "CASE WHEN type = 'subtract' THEN -points ELSE points END"

// PointsRepository handles the append-only points ledger, the daily claim
// uniqueness rows, and the leaderboard aggregation queries.
type PointsRepository struct {
	pool *pgxpool.Pool
}

// NewPointsRepository creates a new PointsRepository instance.
func NewPointsRepository(pool *pgxpool.Pool) *PointsRepository {
	return &PointsRepository{pool: pool}
}

func scanTx(row pgx.Row) (*model.PointsTransaction, error) {
	var tx model.PointsTransaction
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Points, &tx.Type, &tx.Note, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Add appends an 'add' transaction. The magnitude must be positive; the
// caller validates before reaching here, the CHECK constraint backstops.
func (r *PointsRepository) Add(ctx context.Context, userID int64, points int, note string) (*model.PointsTransaction, error) {
	const query = `
		INSERT INTO point_transactions (user_id, points, type, note, created_at)
		VALUES ($1, $2, 'add', $3, NOW())
		RETURNING ` + txColumns

	tx, err := scanTx(r.pool.QueryRow(ctx, query, userID, points, note))
	if err != nil {
		return nil, fmt.Errorf("failed to record points: %w", err)
	}
	return tx, nil
}

// Deduct appends a 'subtract' transaction inside a database transaction
// that row-locks the user and recomputes the balance first. Unless
// allowNegative is set, a deduction that would push the balance below zero
// fails with ErrInsufficientPoints and leaves the ledger untouched.
func (r *PointsRepository) Deduct(ctx context.Context, userID int64, points int, note string, allowNegative bool) (*model.PointsTransaction, error) {
	dbTx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin deduct: %w", err)
	}
	defer dbTx.Rollback(ctx)

	// Lock the user row so concurrent deductions for the same user
	// serialise on their balance check.
	var locked int64
	err = dbTx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	if !allowNegative {
		var balance int
		err = dbTx.QueryRow(ctx,
			`SELECT COALESCE(SUM(`+signedExpr+`), 0) FROM point_transactions WHERE user_id = $1`,
			userID,
		).Scan(&balance)
		if err != nil {
			return nil, fmt.Errorf("failed to read balance: %w", err)
		}
		if balance < points {
			return nil, ErrInsufficientPoints
		}
	}

	const insert = `
		INSERT INTO point_transactions (user_id, points, type, note, created_at)
		VALUES ($1, $2, 'subtract', $3, NOW())
		RETURNING ` + txColumns

	tx, err := scanTx(dbTx.QueryRow(ctx, insert, userID, points, note))
	if err != nil {
		return nil, fmt.Errorf("failed to record deduction: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit deduct: %w", err)
	}
	return tx, nil
}

// Balance returns the signed sum of all ledger entries for the user.
func (r *PointsRepository) Balance(ctx context.Context, userID int64) (int, error) {
	const query = `
		SELECT COALESCE(SUM(` + signedExpr + `), 0)
		FROM point_transactions
		WHERE user_id = $1
	`

	var balance int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// History retrieves a page of the user's transactions, newest first,
// optionally filtered by type, plus the total matching count.
func (r *PointsRepository) History(ctx context.Context, userID int64, offset, limit int, typeFilter string) ([]*model.PointsTransaction, int, error) {
	const base = `FROM point_transactions WHERE user_id = $1 AND ($2 = '' OR type = $2)`

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+base, userID, typeFilter).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+txColumns+` `+base+` ORDER BY created_at DESC, id DESC OFFSET $3 LIMIT $4`,
		userID, typeFilter, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.PointsTransaction
	for rows.Next() {
		var tx model.PointsTransaction
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Points, &tx.Type, &tx.Note, &tx.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, total, nil
}

// ClaimDaily atomically records a daily claim for the given server date.
// The daily_claims insert and the ledger insert commit together; if the
// (user, date) row already exists the whole operation fails with
// ErrAlreadyClaimed and nothing is written.
func (r *PointsRepository) ClaimDaily(ctx context.Context, userID int64, claimDate time.Time, points int) (*model.PointsTransaction, error) {
	dbTx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer dbTx.Rollback(ctx)

	tag, err := dbTx.Exec(ctx,
		`INSERT INTO daily_claims (user_id, claim_date) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, claimDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record claim date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyClaimed
	}

	const insert = `
		INSERT INTO point_transactions (user_id, points, type, note, created_at)
		VALUES ($1, $2, 'add', $3, NOW())
		RETURNING ` + txColumns

	tx, err := scanTx(dbTx.QueryRow(ctx, insert, userID, points, model.NoteDailyClaim))
	if err != nil {
		return nil, fmt.Errorf("failed to record claim points: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return tx, nil
}

// LastClaimDate returns the most recent claim date for the user, and false
// if the user has never claimed.
func (r *PointsRepository) LastClaimDate(ctx context.Context, userID int64) (time.Time, bool, error) {
	const query = `SELECT MAX(claim_date) FROM daily_claims WHERE user_id = $1`

	var last *time.Time
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last claim date: %w", err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// LeaderboardPage returns one page of per-user totals ordered by total
// descending with ascending user ID breaking ties. Members without ledger
// entries appear with a total of zero.
func (r *PointsRepository) LeaderboardPage(ctx context.Context, offset, limit int) ([]*model.LeaderboardRow, error) {
	const query = `
		SELECT u.id, u.username, COALESCE(SUM(` + signedExpr + `), 0) AS total
		FROM users u
		LEFT JOIN point_transactions t ON t.user_id = u.id
		GROUP BY u.id, u.username
		ORDER BY total DESC, u.id ASC
		OFFSET $1 LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard page: %w", err)
	}
	defer rows.Close()

	var page []*model.LeaderboardRow
	for rows.Next() {
		var row model.LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.Username, &row.Total); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		page = append(page, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	return page, nil
}

// UserRank returns the user's 1-based position under the leaderboard
// ordering (total descending, user ID ascending on ties).
func (r *PointsRepository) UserRank(ctx context.Context, userID int64) (int, error) {
	const query = `
		WITH totals AS (
			SELECT u.id, COALESCE(SUM(` + signedExpr + `), 0) AS total
			FROM users u
			LEFT JOIN point_transactions t ON t.user_id = u.id
			GROUP BY u.id
		)
		SELECT (
			SELECT COUNT(*) FROM totals o
			WHERE o.total > mine.total OR (o.total = mine.total AND o.id < mine.id)
		) + 1
		FROM totals mine
		WHERE mine.id = $1
	`

	var rank int
	err := r.pool.QueryRow(ctx, query, userID).Scan(&rank)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get user rank: %w", err)
	}
	return rank, nil
}
