// Package main воркер рассылки уведомлений о подписке.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/entitlement-tracker/internal/app/sender"
	"github.com/magabrotheeeer/entitlement-tracker/internal/config"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting notification-sender", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := sender.New(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to initialize sender", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("sender stopped with error", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("notification-sender stopped gracefully")
}
