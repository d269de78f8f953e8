// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-points-api/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrCommentNotFound   = errors.New("comment not found")
	ErrAlreadyClaimed    = errors.New("daily points already claimed")
	ErrDuplicateRating   = errors.New("seminar already rated by user")
	ErrInsufficientPoints = errors.New("insufficient points")
)

const userColumns = "id, username, display_name, email, created_at, updated_at"

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create creates a new user row for an externally issued identity.
func (r *UserRepository) Create(ctx context.Context, id int64, username, displayName, email string) (*model.User, error) {
	const query = `
		INSERT INTO users (id, username, display_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, username, displayName, email))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID. Returns ErrUserNotFound if absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user, creating the row if it doesn't exist.
// Returns the user and whether it was newly created.
func (r *UserRepository) GetOrCreate(ctx context.Context, id int64, username, displayName, email string) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, id)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, id, username, displayName, email)
	if err != nil {
		// Another request may have created the user concurrently.
		user, err = r.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// UpdateProfile refreshes the mutable identity fields when the auth
// provider reports new values.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, username, displayName, email string) error {
	const query = `
		UPDATE users
		SET username = $2, display_name = $3, email = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, username, displayName, email)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Exists checks if a user with the given ID exists.
func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Count returns the number of registered users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
