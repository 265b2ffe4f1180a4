package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/dsa-galaxy/internal/app"
	"github.com/markdave123-py/dsa-galaxy/internal/config"
	"github.com/markdave123-py/dsa-galaxy/internal/logger"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	log.Info("dsa galaxy is running", "port", cfg.Port, "provider", cfg.LLMProvider)
	if err := application.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		return
	}
	log.Info("shutdown complete")
}
