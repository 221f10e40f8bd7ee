package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/auth-notification-service/internal/config"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/internal/handler"
	"github.com/prperemyshlev/auth-notification-service/internal/notification"
	"github.com/prperemyshlev/auth-notification-service/internal/repository"
	"github.com/prperemyshlev/auth-notification-service/internal/service"
	"github.com/prperemyshlev/auth-notification-service/internal/utils"
	"github.com/prperemyshlev/auth-notification-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "auth-service"
	shutdownTimeout = 5 * time.Second
)

// App is the HTTP API process: auth endpoints plus the expired refresh token sweeper
type App struct {
	infra         Infrastructure
	config        *config.Config
	server        *http.Server
	publisher     *notification.Publisher
	refreshTokens *service.RefreshTokenService
	seeder        *service.UserSeeder
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())
	meter := observability.Meter(infra.MeterProvider(), serviceName)

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry.Duration)

	refreshTokens := service.NewRefreshTokenService(
		repos.Token,
		repos.User,
		jwtManager,
		cfg.JWT.RefreshTokenExpiry.Duration,
		meter,
		logger,
	)

	publisher := notification.NewPublisher(infra.RabbitMQ(), cfg.RabbitMQ.Exchange, meter, logger)

	hasher := utils.NewPasswordHasher(cfg.Security.BCryptCost)

	authService := service.NewAuthService(
		repos.User,
		repos.VerificationToken,
		refreshTokens,
		jwtManager,
		hasher,
		publisher,
		cfg.Notification.PublishTimeout.Duration,
		logger,
	)

	authHandler := handler.NewAuthHandler(authService, logger)
	healthChecker := NewHealthChecker(infra)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS))

	setupRoutes(router, authHandler, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:         infra,
		config:        cfg,
		server:        srv,
		publisher:     publisher,
		refreshTokens: refreshTokens,
		seeder:        service.NewUserSeeder(repos.User, hasher, logger),
	}
}

// Seed creates the configured SUPERADMIN and ADMIN accounts unless their emails are taken
func (a *App) Seed(ctx context.Context) (int, error) {
	seed := a.config.Seed
	return a.seeder.Seed(ctx, []service.SeedAccount{
		{FullName: seed.SuperAdminName, Email: seed.SuperAdminEmail, Password: seed.SuperAdminPassword, Role: domain.RoleSuperAdmin},
		{FullName: seed.AdminName, Email: seed.AdminEmail, Password: seed.AdminPassword, Role: domain.RoleAdmin},
	})
}

func setupRoutes(
	router *gin.Engine,
	authHandler *handler.AuthHandler,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api/v1")
	authHandler.RegisterRoutes(api.Group("/auth"))
}

// Run serves HTTP and sweeps expired refresh tokens until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	logger := a.infra.Logger()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.refreshTokens.RunSweeper(gctx, a.config.JWT.SweepInterval.Duration)
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("Application stopped by context")
		}
		return a.Shutdown()
	})

	return g.Wait()
}

func (a *App) Shutdown() error {
	logger := a.infra.Logger()
	logger.Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// stop accepting requests before the publisher and connections go away
	serverErr := a.server.Shutdown(ctx)
	err := errors.Join(serverErr, a.publisher.Close(), a.infra.Shutdown(ctx))
	if err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("Application exited successfully")
	return nil
}
