// Package main is the entry point for the flashcards API server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (.env file, then environment variables)
// 2. Create dependencies (logger, database)
// 3. Start the server and stop it on SIGINT/SIGTERM
//
// All actual logic lives in internal/ packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sakif/flashcards/internal/config"
	"github.com/sakif/flashcards/internal/repository/sqlite"
	"github.com/sakif/flashcards/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// A .env file is optional; real environment variables win over it.
	// Errors go to a bootstrap logger because the configured one depends on
	// LOG_LEVEL and LOG_FORMAT.
	boot := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := config.LoadDotEnv(); err != nil {
		boot.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	// === 3. OPEN THE DATABASE ===
	// os.MkdirAll is `mkdir -p`; an in-memory database needs no directory.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// sqlite.New applies pending migrations before returning.
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, db, logger)
	if err != nil {
		db.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// signal.NotifyContext cancels ctx on Ctrl+C or SIGTERM (docker stop,
	// systemd). Start blocks until then and closes the database on return.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
