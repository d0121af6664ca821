// Copyright (c) 2026 Identra. All rights reserved.

/*
Package api is the composition root of the Identra HTTP server.

It assembles the middleware chain, mounts the domain routers under /api/v1,
and owns the HTTP server lifecycle including graceful shutdown.
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/identra/identra/internal/platform/config"
	"github.com/identra/identra/internal/platform/constants"
	"github.com/identra/identra/internal/platform/middleware"
	"github.com/identra/identra/internal/users/admin"
	"github.com/identra/identra/internal/users/auth"
)

// # Server

// Server bundles the HTTP server with the clients its health probes observe.
type Server struct {
	config      *config.Config
	logger      *slog.Logger
	mongoClient *mongo.Client
	redisClient *redis.Client
	httpServer  *http.Server
}

// Dependencies carries everything the composition root needs to assemble
// the router.
type Dependencies struct {
	Config       *config.Config
	Logger       *slog.Logger
	MongoClient  *mongo.Client
	RedisClient  *redis.Client
	Verifier     middleware.TokenVerifier
	AuthHandler  *auth.Handler
	AdminHandler *admin.Handler
}

// New assembles the full HTTP server.
//
// The context bounds the lifetime of background middleware state (the rate
// limiter cleanup loops); cancel it on shutdown.
func New(ctx context.Context, deps Dependencies) *Server {
	server := &Server{
		config:      deps.Config,
		logger:      deps.Logger,
		mongoClient: deps.MongoClient,
		redisClient: deps.RedisClient,
	}

	router := chi.NewRouter()

	// Order matters: request identity and logging come first so every later
	// stage (including panics and rate-limit rejections) is attributable.
	router.Use(chimiddleware.CleanPath)
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(deps.Logger))
	router.Use(middleware.PanicRecovery(deps.Logger))
	router.Use(middleware.CORS(deps.Config))
	router.Use(chimiddleware.Timeout(constants.GlobalRequestTimeout))
	router.Use(middleware.RateLimit(ctx, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst))
	router.Use(middleware.Authenticate(deps.Verifier))

	router.Get("/health", server.handleHealth)
	router.Get("/ready", server.handleReady)

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Group(func(authRoutes chi.Router) {
			// Credential endpoints get a much stricter per-IP budget.
			authRoutes.Use(middleware.RateLimit(ctx, constants.AuthRateLimitRPS, constants.AuthRateLimitBurst))
			authRoutes.Mount("/auth", deps.AuthHandler.Routes())
		})
		v1.Mount("/users", deps.AdminHandler.Routes())
	})

	server.httpServer = &http.Server{
		Addr:              ":" + deps.Config.Port,
		Handler:           router,
		ReadTimeout:       constants.DefaultReadTimeout,
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		WriteTimeout:      constants.DefaultWriteTimeout,
		IdleTimeout:       constants.DefaultIdleTimeout,
	}

	return server
}

// Run serves HTTP until the context is canceled, then drains in-flight
// requests within [constants.ShutdownTimeout].
func (server *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		server.logger.Info("http server listening",
			slog.String("addr", server.httpServer.Addr),
			slog.String("environment", server.config.Environment))
		if err := server.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	server.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := server.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
