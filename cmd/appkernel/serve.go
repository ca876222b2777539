package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	apihttp "github.com/artpar/appkernel/adapters/http"
	"github.com/artpar/appkernel/adapters/metrics"
	"github.com/artpar/appkernel/bootstrap"
	"github.com/artpar/appkernel/core/events"
)

func newServeCmd(app *application) *cobra.Command {
	var (
		addr    string
		watch   bool
		openAPI bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Boot the kernel and serve the diagnostics endpoints",
		Long: `Boot the kernel and serve the diagnostics endpoints.

The server exposes:
  /health, /health/ready   - liveness and readiness
  /metrics                 - Prometheus metrics
  /_kernel/bundles         - active bundles
  /_kernel/imports         - import trace
  /_kernel/routes          - route table
  /_profiler/              - boot report (WebProfilerBundle, dev and test)
  /swagger/                - Swagger UI (--openapi)

With --watch (the default in debug mode) the kernel is rebuilt when a
configuration file or dotenv file changes. SIGHUP always triggers a reload.

Environment variables:
  APP_ENV          - Environment name (default: dev)
  USE_MONGODB      - "true" selects the document persistence stack
  APP_DEBUG        - Debug mode (default: true unless APP_ENV=prod)
  APP_HTTP_ADDR    - Listen address (default: 127.0.0.1:8000)
  APP_LOG_LEVEL    - Log level: debug, info, warn, error

Examples:
  appkernel serve
  appkernel serve --env prod --addr :8080
  USE_MONGODB=true appkernel serve --watch=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), app, addr, watch, openAPI)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", app.snapshot.HTTPAddr, "listen address")
	cmd.Flags().BoolVar(&watch, "watch", app.snapshot.Debug, "reload the kernel when configuration changes")
	cmd.Flags().BoolVar(&openAPI, "openapi", true, "serve the OpenAPI document and Swagger UI")
	return cmd
}

func runServe(ctx context.Context, app *application, addr string, watch, openAPI bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := app.logger
	m := metrics.New()

	dispatcher := events.NewDispatcher(logger)
	dispatcher.Subscribe("kernel.*", 0, func(ctx context.Context, e events.Event) error {
		ev := logger.Info()
		if e.Err != nil {
			ev = logger.Error().Err(e.Err)
		}
		ev.Str("event", e.Name).Str("boot_id", e.BootID).Msg("kernel lifecycle")
		return nil
	})

	w, err := bootstrap.NewWatcher(ctx,
		app.build(bootstrap.WithMetrics(m), bootstrap.WithDispatcher(dispatcher)),
		logger, m)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("kernel shutdown error")
		}
	}()

	if watch {
		if err := w.WatchFiles(); err != nil {
			logger.Warn().Err(err).Msg("file watching disabled")
		}
	}
	w.WatchSignals()

	router := apihttp.NewRouter(w.KernelFunc(), logger, apihttp.RouterConfig{
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Version:  version,

		EnableOpenAPI: openAPI,
	})
	server := apihttp.NewServer(addr, router)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("env", app.snapshot.Env).
			Str("mode", app.snapshot.Mode.String()).
			Msg("starting diagnostics server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		logger.Info().Msg("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
