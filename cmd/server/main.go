// Package main is the entry point for the promotional code service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"promocode-service/internal/auth"
	"promocode-service/internal/config"
	"promocode-service/internal/handler"
	"promocode-service/internal/mailer"
	"promocode-service/internal/pkg/db"
	"promocode-service/internal/pkg/lock"
	"promocode-service/internal/repository"
	"promocode-service/internal/service"
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
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	codeRepo := repository.NewPromoCodeRepository(dbPool.Pool)
	redemptionRepo := repository.NewRedemptionRepository(dbPool.Pool)

	// Initialize services
	credentialsMailer := mailer.NewLogMailer(cfg.Mailer.From, cfg.Mailer.Subject)
	accountService := service.NewAccountService(
		userRepo,
		redemptionRepo,
		codeRepo,
		credentialsMailer,
		cfg.Auth.BcryptCost,
	)

	codeService := service.NewCodeService(
		codeRepo,
		cfg.Codes.GeneratedLength,
		cfg.Codes.MaxCollisionRetries,
		cfg.Codes.MaxBulkCount,
	)

	codeLock := lock.NewCodeLock()
	engine := service.NewRedemptionEngine(
		dbPool.Pool,
		codeRepo,
		redemptionRepo,
		userRepo,
		codeLock,
		cfg.Redemption.MaxRetries,
	)

	rankingService := service.NewRankingService(userRepo, redemptionRepo, cfg.Ranking.Limit)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)

	// Wire the HTTP surface
	h := handler.New(accountService, codeService, engine, rankingService, tokens)
	redeemLimiter := handler.NewUserRateLimiter(cfg.Redemption.RatePerMinute, cfg.Redemption.RateBurst)
	router := handler.NewRouter(h, redeemLimiter, dbPool.HealthCheck)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_role_score ON users(role, score DESC, id ASC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create promo_codes table. Codes are soft deleted so the
	// code string stays reserved forever.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS promo_codes (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(255) NOT NULL UNIQUE,
			base_points BIGINT NOT NULL,
			mode VARCHAR(50) NOT NULL,
			remaining_redemptions BIGINT NOT NULL DEFAULT 0,
			remaining_points BIGINT NOT NULL DEFAULT 0,
			decay_step BIGINT NOT NULL DEFAULT 0,
			issuer_id BIGINT NOT NULL REFERENCES users(id),
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: promo_codes table created")

	// Migration 3: Create redemptions ledger. The unique constraint is the
	// double-redemption guard.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS redemptions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			code_id BIGINT NOT NULL REFERENCES promo_codes(id),
			points_awarded BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, code_id)
		);
		CREATE INDEX IF NOT EXISTS idx_redemptions_user_time ON redemptions(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: redemptions table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
