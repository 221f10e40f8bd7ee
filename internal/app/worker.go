package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/auth-notification-service/internal/config"
	"github.com/prperemyshlev/auth-notification-service/internal/handler"
	"github.com/prperemyshlev/auth-notification-service/internal/notification"
	"github.com/prperemyshlev/auth-notification-service/internal/repository"
	"github.com/prperemyshlev/auth-notification-service/pkg/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	workerServiceName = "notification-worker"
	consumerTag       = "notification-worker"

	minReconnectBackoff = time.Second
	maxReconnectBackoff = 30 * time.Second
)

// Worker is the notification process: it consumes lifecycle events and sends email
type Worker struct {
	infra       Infrastructure
	config      *config.Config
	consumer    *notification.Consumer
	server      *http.Server
	concurrency int
	prefetch    int
}

// NewWorker wires the consumer. mailer is usually an SMTP mailer built by NewSMTPMailer.
func NewWorker(infra Infrastructure, cfg *config.Config, mailer notification.MailSender) (*Worker, error) {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	renderer, err := notification.NewTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}

	handlers := notification.NewHandlers(
		repos.VerificationToken,
		mailer,
		renderer,
		notification.AppInfo{
			Name:         cfg.AppInfo.Name,
			BaseURL:      cfg.AppInfo.BaseURL,
			SupportEmail: cfg.AppInfo.SupportEmail,
		},
		cfg.Notification.VerificationTokenExpiry.Duration,
		logger,
	)

	consumer := notification.NewConsumer(
		handlers.Subscriptions(),
		notification.NewRedisLedger(infra.Redis().Client, cfg.Notification.LedgerTTL.Duration),
		notification.ConsumerConfig{
			MaxRetries:   cfg.Notification.MaxRetries,
			RetryBackoff: cfg.Notification.RetryBackoff.Duration,
		},
		observability.Meter(infra.MeterProvider(), workerServiceName),
		logger,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.LoggerMiddleware(logger))
	router.GET("/metrics", observability.PrometheusHandler(infra.MetricsHandler()))
	router.GET("/health", NewHealthChecker(infra).Handler)

	concurrency := max(cfg.Notification.Concurrency, 1)
	prefetch := cfg.RabbitMQ.Prefetch
	if prefetch < 1 {
		prefetch = concurrency
	}

	return &Worker{
		infra:    infra,
		config:   cfg,
		consumer: consumer,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%s", cfg.Worker.Host, cfg.Worker.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		concurrency: concurrency,
		prefetch:    prefetch,
	}, nil
}

// NewSMTPMailer builds the production mailer from configuration
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *notification.SMTPMailer {
	return notification.NewSMTPMailer(notification.SMTPConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Username:  cfg.Username,
		Password:  cfg.Password,
		From:      cfg.From,
		TLSPolicy: cfg.TLSPolicy,
	}, logger)
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff when the broker goes away
func (w *Worker) Run(ctx context.Context) error {
	logger := w.infra.Logger()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		backoff := minReconnectBackoff
		for {
			connected, err := w.consume(gctx)
			if gctx.Err() != nil {
				return nil
			}
			if connected {
				backoff = minReconnectBackoff
			}

			logger.Warn("notification consumer stopped, reconnecting",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-gctx.Done():
				return nil
			case <-time.After(backoff):
			}

			if backoff < maxReconnectBackoff {
				backoff = min(backoff*2, maxReconnectBackoff)
			}
		}
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(err, w.infra.Shutdown(shutdownCtx))
}

// consume opens one channel and runs Concurrency consumer loops over its deliveries.
// It reports whether consumption started at all.
func (w *Worker) consume(ctx context.Context) (bool, error) {
	rmq := w.infra.RabbitMQ()

	ch, err := rmq.Channel()
	if err != nil {
		return false, err
	}
	defer func() { _ = ch.Close() }()

	if err := rmq.Declare(NotificationTopology(w.config.RabbitMQ)); err != nil {
		return false, err
	}

	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		return false, fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(w.config.RabbitMQ.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("failed to consume %s: %w", w.config.RabbitMQ.Queue, err)
	}

	w.infra.Logger().Info("notification consumer started",
		zap.String("queue", w.config.RabbitMQ.Queue),
		zap.Int("concurrency", w.concurrency),
		zap.Int("prefetch", w.prefetch),
	)

	g, gctx := errgroup.WithContext(ctx)
	for range w.concurrency {
		g.Go(func() error {
			return w.consumer.Run(gctx, deliveries)
		})
	}

	return true, g.Wait()
}
