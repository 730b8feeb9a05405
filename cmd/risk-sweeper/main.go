// Package main is the entry point for the risk sweeper.
//
// The sweeper re-evaluates every location on SWEEP_INTERVAL, persisting a
// fresh snapshot per pass and publishing RED alerts. It shares the API's
// caches through Redis when configured and exposes Prometheus metrics on
// SWEEP_METRICS_PORT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"crowdrisk/internal/app"
	"crowdrisk/internal/config"
	"crowdrisk/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("crowdrisk risk sweeper starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"interval", cfg.Sweeper.Interval.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error("closing connections", "error", err)
		}
	}()
	components.StartJanitor(ctx)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Sweeper.MetricsPort,
		Handler:           metricsRouter(components.Metrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	sweeper := scheduler.NewSweeper(components.Engine, components.Metrics, scheduler.SweeperConfig{
		Interval:    cfg.Sweeper.Interval,
		Concurrency: cfg.Sweeper.Concurrency,
		Language:    cfg.Sweeper.Language,
	}, nil, logger.With("component", "sweeper"))

	runErr := sweeper.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	logger.Info("risk sweeper stopped cleanly")
	return runErr
}

// metricsRouter serves the Prometheus handler and a liveness probe.
func metricsRouter(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
