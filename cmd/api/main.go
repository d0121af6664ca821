// Copyright (c) 2026 Identra. All rights reserved.

// Command api runs the Identra HTTP API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/identra/identra/internal/api"
	"github.com/identra/identra/internal/platform/config"
	"github.com/identra/identra/internal/platform/constants"
	"github.com/identra/identra/internal/platform/mongostore"
	redisstore "github.com/identra/identra/internal/platform/redis"
	"github.com/identra/identra/internal/platform/sec"
	"github.com/identra/identra/internal/users/admin"
	"github.com/identra/identra/internal/users/auth"
)

func main() {
	logger := newLogger()

	if err := run(logger); err != nil {
		logger.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Backing stores
	startupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	mongoClient, err := mongostore.Connect(startupCtx, cfg.MongoURI, logger)
	if err != nil {
		return err
	}
	defer mongostore.Disconnect(context.Background(), mongoClient, logger)

	database := mongoClient.Database(cfg.MongoDatabase)
	if err := mongostore.EnsureIndexes(startupCtx, database, logger); err != nil {
		return err
	}

	redisClient, err := redisstore.NewClient(startupCtx, redisstore.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	// Security
	tokens, err := sec.NewTokenService(
		cfg.JWTSecret, cfg.JWTRefreshSecret, constants.AuthIssuer,
		cfg.JWTExpiresIn, cfg.JWTRefreshExpiresIn)
	if err != nil {
		return err
	}

	// OAuth providers are optional: unset credentials simply leave the
	// provider unmounted.
	var providers []auth.ProviderClient
	if cfg.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleClient(
			cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.PublicURL+"/api/v1/auth/google/callback"))
	}
	if cfg.GithubEnabled() {
		providers = append(providers, auth.NewGithubClient(
			cfg.GithubClientID, cfg.GithubClientSecret,
			cfg.PublicURL+"/api/v1/auth/github/callback"))
	}

	// Domain wiring
	users := auth.NewUserRepository(database)
	authService := auth.NewService(
		users,
		auth.NewResetTokenRepository(redisClient),
		auth.NewVerificationTokenRepository(redisClient),
		auth.NewStateRepository(redisClient),
		tokens,
		providers,
		logger,
	)
	adminService := admin.NewService(users, admin.NewProfileCache(redisClient, cfg.RedisTTL), logger)

	server := api.New(ctx, api.Dependencies{
		Config:       cfg,
		Logger:       logger,
		MongoClient:  mongoClient,
		RedisClient:  redisClient,
		Verifier:     tokens,
		AuthHandler:  auth.NewHandler(authService, cfg.FrontendURL, cfg.IsProduction()),
		AdminHandler: admin.NewHandler(adminService),
	})

	return server.Run(ctx)
}

// newLogger builds the process-wide structured logger. JSON to stdout so log
// collectors can ingest it without a parsing stage.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
}
