// Package main содержит точку входа сервиса plan synchronizer.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/storeplan-sync/internal/app/plan-synchronizer"
	"github.com/magabrotheeeer/storeplan-sync/internal/config"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env, os.Stdout)

	logger.Info("starting plan-synchronizer", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := plansynchronizer.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize plan synchronizer app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("plan synchronizer app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("plan synchronizer app stopped gracefully")
}
