package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/app"
)

// run читает конфигурацию, настраивает логирование и держит сервис до отмены ctx.
func run(ctx context.Context, envFiles ...string) error {
	cfg, err := app.LoadConfig(envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := app.ConfigureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("starting encontrar order service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.WithError(err).Fatal("order service stopped with error")
	}
	log.Info("order service stopped")
}
