package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/httpserver"
	"chatrelay/internal/presence"
	"chatrelay/internal/security"
	"chatrelay/internal/service"
	"chatrelay/internal/store/postgres"
	"chatrelay/internal/store/sqlite"
	"chatrelay/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	var logger zerolog.Logger
	if cfg.Env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	if !cfg.Debug {
		logger = logger.Level(zerolog.InfoLevel)
	}

	// Durable store: DATABASE_URL scheme selects the driver.
	var (
		db       *sql.DB
		userRepo domain.UserRepository
		convRepo domain.ConversationRepository
		msgRepo  domain.MessageRepository
	)
	if cfg.IsPostgres() {
		db, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open database")
		}
		if err := postgres.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		userRepo = postgres.NewUserRepo(db)
		convRepo = postgres.NewConversationRepo(db)
		msgRepo = postgres.NewMessageRepo(db)
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		db, err = sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open database")
		}
		if err := sqlite.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		userRepo = sqlite.NewUserRepo(db)
		convRepo = sqlite.NewConversationRepo(db)
		msgRepo = sqlite.NewMessageRepo(db)
		logger.Info().Msg("connected to SQLite")
	}
	defer db.Close()

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)

	// Relay core
	registry := presence.NewRegistry()
	hub := ws.NewHub()
	authSvc := service.NewAuthService(userRepo, tokenSvc, passwordHasher)
	chatSvc := service.NewChatService(userRepo, convRepo, msgRepo, registry, logger)

	router := httpserver.NewRouter(cfg, logger, db, hub, registry, authSvc, chatSvc, userRepo)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket writes manage their own deadlines
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr()).Str("env", cfg.Env).Msg("starting chatrelay server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
