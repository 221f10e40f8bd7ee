package observability

import (
	"net/http"

	"github.com/gin-gonic/gin"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler != nil {
			handler.ServeHTTP(c.Writer, c.Request)
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":     "error",
				"statusCode": http.StatusInternalServerError,
				"message":    "metrics handler not initialized",
			})
		}
	}
}

// Meter returns a named meter from provider, or a no-op meter when provider is nil
func Meter(provider otelmetric.MeterProvider, name string) otelmetric.Meter {
	if provider == nil {
		return noop.NewMeterProvider().Meter(name)
	}
	return provider.Meter(name)
}

// Counter creates an Int64Counter, falling back to a no-op counter if the SDK rejects it
func Counter(meter otelmetric.Meter, name, description string, logger *zap.Logger) otelmetric.Int64Counter {
	counter, err := meter.Int64Counter(name, otelmetric.WithDescription(description))
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create counter", zap.String("name", name), zap.Error(err))
		}
		return noop.Int64Counter{}
	}
	return counter
}
