package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/magidandrew/tg-persona/internal/api"
	"github.com/magidandrew/tg-persona/internal/completion"
	"github.com/magidandrew/tg-persona/internal/config"
	"github.com/magidandrew/tg-persona/internal/digest"
	"github.com/magidandrew/tg-persona/internal/handlers"
	"github.com/magidandrew/tg-persona/internal/monitor"
	"github.com/magidandrew/tg-persona/internal/review"
	"github.com/magidandrew/tg-persona/internal/store"
	"github.com/magidandrew/tg-persona/internal/transport"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the approval store: Postgres when configured, SQLite otherwise
	var approvals store.ApprovalStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		approvals = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		approvals = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite store")
	}

	// Optional Redis-backed dispatch limiter
	var limiter *store.DispatchLimiter
	if cfg.RedisURL != "" {
		var err error
		limiter, err = store.NewDispatchLimiter(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer limiter.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Transport bridge
	bridge, err := transport.NewBridge(cfg.BridgeURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("bridge setup failed")
	}
	self, err := bridge.SelfIdentity(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("identity resolution failed")
	}
	logger.Info().Str("id", self.ID).Str("username", self.Username).Msg("logged in")

	// Conversation filter
	filter, err := transport.NewChatFilter(cfg.ChatPattern, cfg.ChatBlacklist)
	if err != nil {
		logger.Fatal().Err(err).Msg("chat filter setup failed")
	}

	// Completion client
	prompt, err := completion.LoadPrompt(cfg.PromptPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("prompt load failed")
	}
	completions, err := completion.NewClient(cfg.CompletionBaseURL, cfg.CompletionAPIKey, cfg.CompletionModel, prompt)
	if err != nil {
		logger.Fatal().Err(err).Msg("completion client setup failed")
	}

	// Review controller, reloading any drafts from a previous run
	controller := review.NewController(approvals, bridge, cfg.ReviewerID, cfg.ReviewChannelID, cfg.EditPrefix, logger)
	if err := controller.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("draft reload failed")
	}

	// Aggregation pipeline
	windows := monitor.NewWindowBuilder(bridge, cfg.MaxUniqueSenders, cfg.MaxHistory)
	dispatcher := monitor.NewDispatcher(completions, controller, limiter, self.ID, cfg.DispatchLimit, cfg.DispatchWindow, logger)
	aggregator := monitor.NewAggregator(ctx, cfg.QuietPeriod, bridge, windows, dispatcher, self.ID, logger)
	defer aggregator.Stop()

	// Digest scheduler
	digestTimes, err := digest.ParseTimes(cfg.DigestTimes)
	if err != nil {
		logger.Fatal().Err(err).Msg("digest times invalid")
	}
	go digest.NewScheduler(digestTimes, controller, bridge, cfg.ReviewChannelID, logger).Run(ctx)

	// Create router
	h := handlers.NewHandler(approvals, limiter, aggregator, controller, filter, cfg.ReviewChannelID, logger)
	router := api.NewRouter(logger, h)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Dur("quiet_period", cfg.QuietPeriod).
			Msg("starting tg-persona")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down...")

	// Stop timers and background jobs, then drain HTTP with a timeout
	cancel()
	aggregator.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("stopped")
}
