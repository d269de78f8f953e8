// Package server wires the router, middleware and handlers, and owns the
// HTTP listener lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"community-points-api/internal/config"
	"community-points-api/internal/handler"
	"community-points-api/internal/middleware"
	"community-points-api/internal/pkg/db"
	"community-points-api/internal/service"
)

// Dependencies holds everything the server needs to route requests.
type Dependencies struct {
	Config      *config.Config
	Pool        *db.Pool
	Users       *service.UserService
	Points      *service.PointsService
	Leaderboard *service.LeaderboardService
	Comments    *service.CommentService
	Ratings     *service.RatingService
}

// Server is the HTTP server for the community points API.
type Server struct {
	router chi.Router
	cfg    *config.Config
}

// New assembles the router from the given dependencies.
func New(deps *Dependencies) *Server {
	cfg := deps.Config
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(log.Logger))

	pagination := handler.Pagination{
		DefaultPerPage: cfg.Pagination.DefaultPerPage,
		MaxPerPage:     cfg.Pagination.MaxPerPage,
	}

	pointsHandler := handler.NewPointsHandler(deps.Points, deps.Leaderboard, pagination)
	commentHandler := handler.NewCommentHandler(deps.Comments, pagination)
	ratingHandler := handler.NewRatingHandler(deps.Ratings)

	requireAuth := middleware.RequireAuth(cfg.Auth.JWTSecret, deps.Users)
	requireAdmin := middleware.RequireAdmin(cfg.IsAdmin)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.Pool.HealthCheck(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		// Public read endpoints
		api.Get("/points/leaderboard", pointsHandler.HandleLeaderboard)
		api.Get("/comments", commentHandler.HandleList)
		api.Get("/seminars/{id}/ratings", ratingHandler.HandleList)

		// Authenticated endpoints
		api.Group(func(auth chi.Router) {
			auth.Use(requireAuth)

			auth.Post("/points/claim", pointsHandler.HandleClaim)
			auth.Get("/points/claim", pointsHandler.HandleClaimStatus)
			auth.Get("/points/user/{id}", pointsHandler.HandleBalance)
			auth.Get("/points/user/{id}/rank", pointsHandler.HandleRank)
			auth.Get("/points/user/{id}/transactions", pointsHandler.HandleTransactions)

			auth.Post("/comments", commentHandler.HandleCreate)
			auth.Put("/comments/{id}", commentHandler.HandleUpdate)
			auth.Delete("/comments/{id}", commentHandler.HandleDelete)

			auth.Post("/seminars/{id}/rating", ratingHandler.HandleAdd)

			// Privileged point adjustments
			auth.Group(func(admin chi.Router) {
				admin.Use(requireAdmin)
				admin.Post("/points/add", pointsHandler.HandleAdd)
				admin.Post("/points/deduct", pointsHandler.HandleDeduct)
			})
		})
	})

	return &Server{router: r, cfg: cfg}
}

// Router exposes the assembled router. Used by handler tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start runs the listener until SIGINT/SIGTERM, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.cfg.Server.Port).Msg("server starting")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info().Msg("server stopped gracefully")
	}

	return nil
}
