package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Migrate applies the database schema. Statements are idempotent so the
// server can run them unconditionally at startup. Repository integration
// tests run the same migrations against a throwaway database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// Migration 1: users
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: points ledger. Append-only: no UPDATE or DELETE path
	// exists anywhere in the code, and the magnitude is kept positive with
	// the sign carried by type.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS point_transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			points INT NOT NULL CHECK (points > 0),
			type VARCHAR(16) NOT NULL CHECK (type IN ('add', 'subtract')),
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_point_tx_user_time ON point_transactions(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_point_tx_user_type ON point_transactions(user_id, type);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: point_transactions table created")

	// Migration 3: daily claim uniqueness. The primary key is what makes
	// two same-day claims impossible regardless of how many server
	// processes race on the insert.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS daily_claims (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			claim_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, claim_date)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: daily_claims table created")

	// Migration 4: comments. parent_id 0 marks a top-level comment.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS comments (
			id BIGSERIAL PRIMARY KEY,
			post_id BIGINT NOT NULL,
			author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			parent_id BIGINT NOT NULL DEFAULT 0,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post_parent ON comments(post_id, parent_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: comments table created")

	// Migration 5: seminar ratings. The composite primary key enforces
	// write-once per (seminar, user).
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS seminar_ratings (
			seminar_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			skill SMALLINT NOT NULL CHECK (skill BETWEEN 1 AND 5),
			quality SMALLINT NOT NULL CHECK (quality BETWEEN 1 AND 5),
			usefulness SMALLINT NOT NULL CHECK (usefulness BETWEEN 1 AND 5),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (seminar_id, user_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: seminar_ratings table created")

	return nil
}
