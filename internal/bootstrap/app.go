package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appgrpc "gitlab.com/timkado/api/prebid-cache-service/internal/adapters/grpc"
	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/middleware"
	"gitlab.com/timkado/api/prebid-cache-service/pkg/safego"
)

const defaultShutdownTimeout = 30 * time.Second

// RegisterRoutes mounts the Prometheus endpoint and sends every other path to
// the cache router, which owns the 404 and 405 responses.
func (a *App) RegisterRoutes() {
	a.httpServeMux.Handle("GET /metrics", promhttp.Handler())
	a.httpServeMux.Handle("/", middleware.RequestIDMiddleware(middleware.AccessLogMiddleware(a.logger)(a.cacheHandler)))
}

// Run serves the cache over HTTP (and gRPC health, when configured) until a
// shutdown signal arrives or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	cfg := a.configProvider.Get()
	a.logger.Info(ctx, "Starting application", "service_name", cfg.App.ServiceName, "version", cfg.App.Version, "runtime", "http")

	a.RegisterRoutes()

	if err := a.grpcServer.Start(); err != nil && !errors.Is(err, appgrpc.ErrDisabled) {
		return err
	}

	safego.Execute(ctx, a.logger, "SignalListenerAndGracefulShutdown", func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		select {
		case sig := <-quit:
			a.logger.Info(context.Background(), "Shutdown signal received, initiating graceful shutdown...", "signal", sig.String())
		case <-ctx.Done():
			a.logger.Info(context.Background(), "Application context cancelled, initiating graceful shutdown...")
		}

		shutdownTimeout := defaultShutdownTimeout
		if secs := a.configProvider.Get().App.ShutdownTimeoutSeconds; secs > 0 {
			shutdownTimeout = time.Duration(secs) * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.grpcServer.GracefulStop()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error(context.Background(), "HTTP server graceful shutdown failed", "error", err)
		}
		a.logger.Info(context.Background(), "HTTP server shut down.")
	})

	a.logger.Info(ctx, fmt.Sprintf("HTTP server listening on port %d", cfg.Server.HTTPPort))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error(ctx, "HTTP server ListenAndServe error", "error", err)
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.logger.Info(ctx, "Application shut down gracefully or server closed.")
	return nil
}

// RunLambda hands control to the Lambda runtime. It returns only if the
// runtime API becomes unreachable.
func (a *App) RunLambda(ctx context.Context) error {
	cfg := a.configProvider.Get()
	a.logger.Info(ctx, "Starting application", "service_name", cfg.App.ServiceName, "version", cfg.App.Version, "runtime", "lambda")
	lambda.StartWithOptions(a.lambdaHandler.Invoke, lambda.WithContext(ctx))
	return nil
}
