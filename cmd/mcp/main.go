package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/verifiquant/internal/adapters/mcp"
	"github.com/kirillkom/verifiquant/internal/bootstrap"
	"github.com/kirillkom/verifiquant/internal/config"
	"github.com/kirillkom/verifiquant/internal/observability/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	// stdout carries the MCP protocol.
	slog.SetDefault(logging.New(os.Stderr, "verifiquant-mcp", cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer("verifiquant", version, app.Solver, app.Searcher)
	slog.Info("mcp_serving_stdio", "cards", app.Index.Len())
	if err := server.ServeStdio(); err != nil {
		slog.Error("mcp_server_error", "error", err)
	}
}
