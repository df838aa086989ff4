package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/verifiquant/internal/config"
	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/infrastructure/events/nats"
	"github.com/kirillkom/verifiquant/internal/infrastructure/storage/postgres"
	"github.com/kirillkom/verifiquant/internal/observability/logging"
)

// The worker archives solve events published on NATS into postgres.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, "verifiquant-worker", cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		slog.Error("postgres_open_error", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		slog.Error("ensure_schema_error", "error", err)
		os.Exit(1)
	}
	store := postgres.NewSolveEventRepository(db)

	subscriber, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{})
	if err != nil {
		slog.Error("nats_connect_error", "error", err)
		os.Exit(1)
	}
	defer subscriber.Close()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = subscriber.SubscribeSolveEvents(ctx, func(handlerCtx context.Context, event domain.SolveEvent) error {
		storeCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Second)
		defer cancel()
		return store.PublishSolveEvent(storeCtx, event)
	})
	if err != nil {
		slog.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}
