// Package main is the entry point for the omikuji bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"omikuji-bot/internal/bot"
	"omikuji-bot/internal/config"
	"omikuji-bot/internal/game/omikuji"
	"omikuji-bot/internal/pkg/db"
	"omikuji-bot/internal/pkg/lock"
	"omikuji-bot/internal/repository"
	"omikuji-bot/internal/server"
	"omikuji-bot/internal/service"
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

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer closeStore()

	loc, err := cfg.Omikuji.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load timezone")
	}

	selector := omikuji.New(cfg.Omikuji.SelectorConfig())
	if selector.TotalWeight() <= 0 {
		log.Fatal().Err(omikuji.ErrNothingToDraw).Msg("Omikuji outcome table cannot be drawn from")
	}
	if err := selector.Validate(); err != nil {
		// Draws still work, the weights just no longer read as percentages.
		log.Warn().Err(err).Msg("Omikuji outcome table is misconfigured")
	}

	omikujiService := service.NewOmikujiService(
		store,
		service.NewTracker(loc, time.Now),
		selector,
	)

	log.Info().
		Str("timezone", loc.String()).
		Strs("outcomes", selector.Labels()).
		Str("bonus_label", selector.BonusLabel()).
		Msg("Omikuji configured")

	// Liveness endpoint for the hosting platform
	var health *server.HealthServer
	if cfg.Health.Enabled {
		health = server.NewHealthServer()
		go func() {
			if err := health.Start(cfg.Health.Addr()); err != nil {
				log.Error().Err(err).Msg("Health endpoint stopped")
			}
		}()
	}

	// Initialize bot
	telegramBot, err := bot.New(&bot.Dependencies{
		Config:         cfg,
		OmikujiService: omikujiService,
		UserLock:       lock.NewUserLock(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	telegramBot.Stop()
	if health != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := health.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Health endpoint shutdown failed")
		}
		shutdownCancel()
	}
	log.Info().Msg("Bot stopped gracefully")
}

// openStore creates the record store selected by storage.driver.
// The returned close function releases any connections it holds.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverFile:
		log.Info().Str("path", cfg.Storage.DataFile).Msg("Using file store")
		return repository.NewFileStore(cfg.Storage.DataFile), func() {}, nil

	case config.DriverMemory:
		log.Warn().Msg("Using memory store, records are lost on restart")
		return repository.NewMemoryStore(nil), func() {}, nil

	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store := repository.NewPostgresStore(pool.Pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		log.Info().Msg("Using PostgreSQL store")
		return store, pool.Close, nil

	default:
		return nil, nil, errors.New("unknown storage driver: " + cfg.Storage.Driver)
	}
}
