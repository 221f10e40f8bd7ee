package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/auth-notification-service/internal/dto"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 2 * time.Second

type HealthChecker struct {
	infra Infrastructure
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{
		infra: infra,
	}
}

type dependencyCheck struct {
	name string
	ping func(ctx context.Context) error
}

// check pings every dependency concurrently and reports each one by name
func (h *HealthChecker) check(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	checks := []dependencyCheck{
		{name: "postgres", ping: h.infra.Postgres().Ping},
		{name: "redis", ping: h.infra.Redis().Ping},
		{name: "rabbitmq", ping: h.infra.RabbitMQ().Ping},
	}

	results := make([]error, len(checks))
	var g errgroup.Group
	for idx, dep := range checks {
		g.Go(func() error {
			results[idx] = dep.ping(ctx)
			return nil
		})
	}
	_ = g.Wait()

	report := make(map[string]string, len(checks))
	var errs []error
	for idx, dep := range checks {
		if results[idx] != nil {
			report[dep.name] = "fail"
			errs = append(errs, fmt.Errorf("%s: %w", dep.name, results[idx]))
			continue
		}
		report[dep.name] = "pass"
	}

	return report, errors.Join(errs...)
}

func (h *HealthChecker) Handler(c *gin.Context) {
	report, err := h.check(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.Envelope{
			Status:     dto.StatusError,
			StatusCode: http.StatusServiceUnavailable,
			Message:    err.Error(),
			Data:       report,
		})
		return
	}

	c.JSON(http.StatusOK, dto.Envelope{
		Status:     dto.StatusSuccess,
		StatusCode: http.StatusOK,
		Message:    "pass",
		Data:       report,
	})
}
