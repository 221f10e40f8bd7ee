package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prperemyshlev/auth-notification-service/internal/app"
	"github.com/prperemyshlev/auth-notification-service/internal/config"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	infra, err := app.NewInfrastructure(ctx, *cfg, "notification-worker")
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}

	worker, err := app.NewWorker(infra, cfg, app.NewSMTPMailer(cfg.SMTP, infra.Logger()))
	if err != nil {
		infra.Logger().Fatal("Failed to initialize worker", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra.Logger().Info("Notification worker starting")
	if err := worker.Run(ctx); err != nil {
		infra.Logger().Fatal("Worker failed", zap.Error(err))
	}
}
