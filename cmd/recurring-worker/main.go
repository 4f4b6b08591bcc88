package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"registro/internal/amqp"
	"registro/internal/config"
	applog "registro/internal/log"
	"registro/internal/services"
	"registro/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.DefaultConfig()).WithComponent("recurring-worker")
	applog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Materialized movements are published so registro-worker exports them.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
		}
	}

	ledger := services.NewLedgerService(repo, events)
	processor := services.NewRecurringProcessor(repo, ledger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Recurring rule processor configured",
		"interval", cfg.RecurringInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	// Run an initial pass on startup so a restart catches up immediately.
	runPass(ctx, processor)

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Recurring-worker shutdown complete")
			return
		case <-ticker.C:
			runPass(ctx, processor)
		}
	}
}

func runPass(ctx context.Context, processor *services.RecurringProcessor) {
	result, err := processor.ApplyDueRules(ctx, time.Now())
	if err != nil {
		slog.ErrorContext(ctx, "Recurring pass failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Recurring pass complete",
		"created", result.Count,
		"skipped", result.Skipped,
		"failed", result.Failed)
}
