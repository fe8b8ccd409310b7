// Package main is the entry point for the socialhub API server.
//
// main only reads configuration, builds the logger, tracing and store, and
// hands them to internal/server. Everything else lives in internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/socialhub/internal/config"
	"github.com/sakif/socialhub/internal/repository"
	mongoRepo "github.com/sakif/socialhub/internal/repository/mongo"
	sqliteRepo "github.com/sakif/socialhub/internal/repository/sqlite"
	"github.com/sakif/socialhub/internal/server"
	"github.com/sakif/socialhub/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION & LOGGING ===
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if cfg.EnvFile != "" {
		logger.Info("loaded environment file", slog.String("file", cfg.EnvFile))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// === 2. TRACING ===
	shutdownTracing, err := telemetry.Init(context.Background(), cfg.OTelEnabled, cfg.OTelServiceName, logger)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("flushing traces", slog.String("error", err.Error()))
		}
	}()

	// === 3. STORE ===
	// server.Start closes the store on shutdown.
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	// === 4. SERVER ===
	srv, err := server.New(server.Config{
		Port:         cfg.Port,
		JWTSecret:    cfg.JWTSecret,
		TokenTTL:     cfg.TokenTTL,
		CookieSecure: cfg.CookieSecure,
		BcryptCost:   cfg.BcryptCost,
	}, store, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT/SIGTERM.
	return srv.Start()
}

func openStore(cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := mongoRepo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		logger.Info("store ready", slog.String("driver", "mongo"), slog.String("database", cfg.MongoDatabase))
		return store, nil

	default:
		// Create the data directory (like `mkdir -p`).
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}

		store, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("store ready", slog.String("driver", "sqlite"), slog.String("path", cfg.DBPath))
		return store, nil
	}
}
