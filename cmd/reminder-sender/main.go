// Package main содержит точку входа сервиса reminder sender.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/storeplan-sync/internal/app/reminder-sender"
	"github.com/magabrotheeeer/storeplan-sync/internal/config"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env, os.Stdout)

	logger.Info("starting reminder-sender", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := remindersender.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize reminder sender app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("reminder sender app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("reminder sender app stopped gracefully")
}
