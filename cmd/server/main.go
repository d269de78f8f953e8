// Package main is the entry point for the community points API server.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"community-points-api/internal/config"
	"community-points-api/internal/pkg/db"
	"community-points-api/internal/pkg/lock"
	"community-points-api/internal/repository"
	"community-points-api/internal/server"
	"community-points-api/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("auth.jwt_secret must be configured")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	pointsRepo := repository.NewPointsRepository(dbPool.Pool)
	commentRepo := repository.NewCommentRepository(dbPool.Pool)
	ratingRepo := repository.NewRatingRepository(dbPool.Pool)

	// Initialize per-user lock for balance mutations
	userLock := lock.NewUserLock()

	// Initialize services
	userService := service.NewUserService(userRepo)
	pointsService := service.NewPointsService(
		userRepo,
		pointsRepo,
		userLock,
		cfg.Daily.MinPoints,
		cfg.Daily.MaxPoints,
	)
	leaderboardService := service.NewLeaderboardService(userRepo, pointsRepo)
	commentService := service.NewCommentService(commentRepo, userRepo, cfg.IsAdmin)
	ratingService := service.NewRatingService(ratingRepo, userRepo)

	srv := server.New(&server.Dependencies{
		Config:      cfg,
		Pool:        dbPool,
		Users:       userService,
		Points:      pointsService,
		Leaderboard: leaderboardService,
		Comments:    commentService,
		Ratings:     ratingService,
	})

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}
