package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var metricsServer *http.Server

// Init initializes all telemetry components
func Init(cfg *Config) error {
	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := InitMetrics(cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := InitTracing(cfg); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.MetricsAddr != "" {
		srv, err := ServeMetrics(cfg.MetricsAddr, prometheus.DefaultGatherer)
		if err != nil {
			return fmt.Errorf("failed to start metrics listener: %w", err)
		}
		metricsServer = srv
	}

	L().WithFields(logrus.Fields{
		"service":      cfg.ServiceName,
		"version":      cfg.ServiceVersion,
		"environment":  cfg.Environment,
		"exportToFile": cfg.ExportToFile,
		"tracing":      cfg.EnableTracing,
		"metrics":      cfg.EnableMetrics,
	}).Debug("Telemetry initialized")

	return nil
}

// Shutdown gracefully shuts down all telemetry components
func Shutdown(ctx context.Context) error {
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			L().WithError(err).Error("Failed to stop metrics listener")
		}
		metricsServer = nil
	}

	if err := CloseTracing(ctx); err != nil {
		L().WithError(err).Error("Failed to close tracing")
	}

	if err := CloseMetrics(ctx); err != nil {
		L().WithError(err).Error("Failed to close metrics")
	}

	if err := CloseLogger(); err != nil {
		L().WithError(err).Error("Failed to close logger")
	}

	return nil
}

// PrometheusHandler returns an HTTP handler for the metrics in gatherer
func PrometheusHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ServeMetrics serves gatherer on addr under /metrics until the returned
// server is shut down
func ServeMetrics(addr string, gatherer prometheus.Gatherer) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", PrometheusHandler(gatherer))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L().WithError(err).Error("Metrics listener failed")
		}
	}()
	L().WithField("addr", ln.Addr().String()).Info("Serving metrics")
	return srv, nil
}

// TimeOperation starts a span for operation and returns a function that
// ends it, recording the outcome and duration
//
//	ctx, done := telemetry.TimeOperation(ctx, "get")
//	err := run(ctx)
//	done(err)
func TimeOperation(ctx context.Context, operation string) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := StartSpan(ctx, operation)

	return ctx, func(err error) {
		duration := time.Since(start)

		status := "ok"
		if err != nil {
			status = "error"
			RecordError(ctx, err)
		} else {
			SetOKStatus(ctx)
		}
		RecordCommand(operation, status, duration)
		span.End()

		WithContext(ctx).WithFields(logrus.Fields{
			"operation": operation,
			"status":    status,
			"duration":  duration.Milliseconds(),
		}).Debug("Operation completed")
	}
}
