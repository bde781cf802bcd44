// Command worker consumes delivery receipts from RabbitMQ and applies them
// through its own delivery queue, for deployments that keep the receipt path
// out of the API process.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/campaign-delivery/internal/app"
	"github.com/unclebandit/campaign-delivery/internal/config"
	"github.com/unclebandit/campaign-delivery/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := checkWorkerConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid worker configuration")
	}

	a, err := app.Build(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("queue", cfg.ReceiptQueue).Info("Worker running, waiting for receipts...")
	if err := a.Consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("receipt consumer stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
}

// checkWorkerConfig rejects setups where a standalone worker could not share
// state with the API: it needs the broker and the shared database.
func checkWorkerConfig(cfg *config.Config) error {
	if cfg.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required; the in-memory store is private to one process")
	}
	return nil
}
