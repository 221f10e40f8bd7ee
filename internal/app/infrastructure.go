package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prperemyshlev/auth-notification-service/internal/config"
	"github.com/prperemyshlev/auth-notification-service/internal/domain"
	"github.com/prperemyshlev/auth-notification-service/pkg/broker"
	"github.com/prperemyshlev/auth-notification-service/pkg/database"
	"github.com/prperemyshlev/auth-notification-service/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	RabbitMQ() *broker.RabbitMQ
	Logger() *zap.Logger
	MetricsHandler() http.Handler
	MeterProvider() *metric.MeterProvider

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	postgres       *database.Postgres
	redis          *database.Redis
	rabbitmq       *broker.RabbitMQ
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

var _ Infrastructure = &infrastructure{}

// NewInfrastructure connects to every backing service and declares the broker topology.
// serviceName labels the exported metrics.
func NewInfrastructure(ctx context.Context, cfg config.Config, serviceName string) (*infrastructure, error) {
	i := &infrastructure{}

	logger, err := observability.InitLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	i.logger = logger

	postgres, err := database.NewPostgres(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	i.postgres = postgres

	redis, err := database.NewRedis(ctx, database.RedisOptions{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		_ = i.postgres.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	i.redis = redis

	rabbitmq, err := broker.NewRabbitMQ(cfg.RabbitMQ.URL)
	if err != nil {
		_ = i.postgres.Close()
		_ = i.redis.Close()
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	i.rabbitmq = rabbitmq

	if err := rabbitmq.Declare(NotificationTopology(cfg.RabbitMQ)); err != nil {
		_ = i.closeConnections()
		return nil, fmt.Errorf("failed to declare broker topology: %w", err)
	}

	meterProvider, metricsHandler, err := observability.InitTelemetry(serviceName, cfg.Env)
	if err != nil {
		_ = i.closeConnections()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	i.meterProvider = meterProvider
	i.metricsHandler = metricsHandler

	return i, nil
}

// NotificationTopology is the exchange and queue layout shared by publisher and worker
func NotificationTopology(cfg config.RabbitMQConfig) broker.Topology {
	return broker.Topology{
		Exchange:           cfg.Exchange,
		Queue:              cfg.Queue,
		DeadLetterExchange: cfg.DeadLetterExchange,
		DeadLetterQueue:    cfg.DeadLetterQueue,
		DeliveryLimit:      cfg.DeliveryLimit,
		RoutingKeys: []string{
			domain.EventUserRegistered,
			domain.EventUserEmailVerified,
		},
	}
}

func (i *infrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) RabbitMQ() *broker.RabbitMQ {
	return i.rabbitmq
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) MetricsHandler() http.Handler {
	return i.metricsHandler
}

func (i *infrastructure) MeterProvider() *metric.MeterProvider {
	return i.meterProvider
}

func (i *infrastructure) closeConnections() error {
	return errors.Join(i.rabbitmq.Close(), i.postgres.Close(), i.redis.Close())
}

func (i *infrastructure) Shutdown(ctx context.Context) error {
	errs := make(chan error, 2)

	go func() { errs <- i.closeConnections() }()
	go func() { errs <- observability.Shutdown(ctx, i.meterProvider, i.logger) }()

	return errors.Join(<-errs, <-errs)
}
