package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prperemyshlev/auth-notification-service/internal/app"
	"github.com/prperemyshlev/auth-notification-service/internal/config"
	"github.com/prperemyshlev/auth-notification-service/pkg/database"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := database.Migrate(cfg.Migrations, cfg.Postgres.URL()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	infra, err := app.NewInfrastructure(ctx, *cfg, "auth-service")
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}

	application := app.NewApp(infra, cfg)

	if _, err := application.Seed(ctx); err != nil {
		infra.Logger().Fatal("Failed to seed users", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		infra.Logger().Fatal("Application failed", zap.Error(err))
	}
}
