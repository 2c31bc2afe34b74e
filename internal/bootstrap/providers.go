package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/config"
	appgrpc "gitlab.com/timkado/api/prebid-cache-service/internal/adapters/grpc"
	apphttp "gitlab.com/timkado/api/prebid-cache-service/internal/adapters/http"
	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/iam"
	applambda "gitlab.com/timkado/api/prebid-cache-service/internal/adapters/lambda"
	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/logger"
	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/metrics"
	appredis "gitlab.com/timkado/api/prebid-cache-service/internal/adapters/redis"
	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/router"
	"gitlab.com/timkado/api/prebid-cache-service/internal/application"
	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

// startupPingTimeout bounds the best-effort cache ping at cold start.
const startupPingTimeout = 2 * time.Second

// InitialZapLoggerProvider provides a basic *zap.Logger used while the
// configuration is being loaded.
func InitialZapLoggerProvider() (*zap.Logger, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewExample()
		fmt.Fprintf(os.Stderr, "Failed to create initial zap logger, falling back to example logger: %v\n", err)
	}

	cleanup := func() {
		// Sync on stdout/stderr returns EINVAL on some platforms; nothing to do about it.
		_ = logger.Sync()
	}
	return logger, cleanup, nil
}

// App holds the wired components for both runtimes.
type App struct {
	configProvider config.Provider
	logger         domain.Logger
	httpServeMux   *http.ServeMux
	httpServer     *http.Server
	grpcServer     *appgrpc.Server
	cacheHandler   *apphttp.CacheHandler
	lambdaHandler  *applambda.Handler
}

// NewApp is the constructor for App.
func NewApp(
	cfgProvider config.Provider,
	appLogger domain.Logger,
	mux *http.ServeMux,
	server *http.Server,
	grpcSrv *appgrpc.Server,
	cacheHandler *apphttp.CacheHandler,
	lambdaHandler *applambda.Handler,
) (*App, func(), error) {
	app := &App{
		configProvider: cfgProvider,
		logger:         appLogger,
		httpServeMux:   mux,
		httpServer:     server,
		grpcServer:     grpcSrv,
		cacheHandler:   cacheHandler,
		lambdaHandler:  lambdaHandler,
	}

	cleanup := func() {
		app.logger.Info(context.Background(), "Running app cleanup...")
		if app.grpcServer != nil {
			app.grpcServer.GracefulStop()
		}
	}
	return app, cleanup, nil
}

// ConfigProvider provides the application configuration. File watching is
// tied to appCtx.
func ConfigProvider(appCtx context.Context, logger *zap.Logger) (config.Provider, error) {
	return config.NewViperProvider(appCtx, logger, true)
}

// LoggerProvider provides the application logger.
func LoggerProvider(cfgProvider config.Provider) (domain.Logger, error) {
	return logger.NewZapAdapter(cfgProvider, cfgProvider.Get().App.ServiceName)
}

// AWSConfigProvider loads the SDK configuration from the execution role.
func AWSConfigProvider(ctx context.Context, cfgProvider config.Provider) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfgProvider.Get().AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// TokenProviderProvider provides the memoizing IAM auth token generator.
func TokenProviderProvider(cfgProvider config.Provider, awsCfg aws.Config, logger domain.Logger) (*iam.TokenProvider, error) {
	cfg := cfgProvider.Get()
	return iam.NewTokenProvider(cfg.Cache.User, cfg.Cache.Name, cfg.AWS.Region, cfg.Cache.Serverless, awsCfg.Credentials, logger)
}

// RedisClientProvider provides the pooled cache client and a cleanup function.
// An unreachable cache at startup is logged, not fatal: requests report it.
func RedisClientProvider(ctx context.Context, cfgProvider config.Provider, credentials domain.CredentialProvider, appLogger domain.Logger) (*redis.Client, func(), error) {
	cfg := cfgProvider.Get()
	client := appredis.NewClient(cfg, credentials)

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		appLogger.Warn(ctx, "Cache not reachable at startup", "address", cfg.RedisAddress(), "error", err)
	} else {
		appLogger.Info(ctx, "Successfully connected to cache", "address", cfg.RedisAddress())
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			appLogger.Warn(context.Background(), "Error closing cache client", "error", err)
			return
		}
		appLogger.Info(context.Background(), "Cache connection closed")
	}
	return client, cleanup, nil
}

// ItemStoreProvider provides the cache primitives on top of the client.
func ItemStoreProvider(client *redis.Client, logger domain.Logger) domain.ItemStore {
	return appredis.NewItemStoreAdapter(client, logger)
}

// MetricsRecorderProvider fans counters out to Prometheus and, when enabled,
// to CloudWatch.
func MetricsRecorderProvider(cfgProvider config.Provider, awsCfg aws.Config, logger domain.Logger) domain.MetricsRecorder {
	cfg := cfgProvider.Get()
	recorders := metrics.MultiRecorder{metrics.NewPrometheusRecorder()}
	if cfg.Metrics.CloudWatchEnabled {
		recorders = append(recorders, metrics.NewCloudWatchRecorder(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Metrics.Namespace,
			cfg.Metrics.ResourcePrefix,
			logger,
		))
	} else {
		logger.Info(context.Background(), "CloudWatch metrics disabled")
	}
	return recorders
}

// CacheServiceProvider provides the cache service.
func CacheServiceProvider(store domain.ItemStore, recorder domain.MetricsRecorder, logger domain.Logger) *application.CacheService {
	return application.NewCacheService(store, recorder, logger)
}

// RouterProvider provides the request router.
func RouterProvider(service *application.CacheService, logger domain.Logger) *router.Router {
	return router.NewRouter(service, logger)
}

// LambdaHandlerProvider provides the Lambda event adapter.
func LambdaHandlerProvider(dispatcher domain.Dispatcher, logger domain.Logger) *applambda.Handler {
	return applambda.NewHandler(dispatcher, logger)
}

// CacheHandlerProvider provides the net/http adapter for the cache routes.
func CacheHandlerProvider(dispatcher domain.Dispatcher, logger domain.Logger) *apphttp.CacheHandler {
	return apphttp.NewCacheHandler(dispatcher, logger)
}

// HTTPServeMuxProvider provides the main HTTP multiplexer.
func HTTPServeMuxProvider() *http.ServeMux {
	return http.NewServeMux()
}

// HTTPGracefulServerProvider provides the HTTP server for the standalone runtime.
func HTTPGracefulServerProvider(cfgProvider config.Provider, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfgProvider.Get().Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// HealthServerProvider provides the gRPC health service.
func HealthServerProvider(service *application.CacheService, logger domain.Logger) *appgrpc.HealthServer {
	return appgrpc.NewHealthServer(service, logger)
}

// GRPCServerProvider provides the gRPC server.
func GRPCServerProvider(appCtx context.Context, logger domain.Logger, cfgProvider config.Provider, health *appgrpc.HealthServer) *appgrpc.Server {
	return appgrpc.NewServer(appCtx, logger, cfgProvider, health)
}

// ProviderSet is the Wire provider set for the entire application.
var ProviderSet = wire.NewSet(
	InitialZapLoggerProvider,
	ConfigProvider,
	LoggerProvider,

	// Infrastructure adapters
	AWSConfigProvider,
	TokenProviderProvider,
	wire.Bind(new(domain.CredentialProvider), new(*iam.TokenProvider)),
	RedisClientProvider,
	ItemStoreProvider,
	MetricsRecorderProvider,

	// Application
	CacheServiceProvider,
	RouterProvider,
	wire.Bind(new(domain.Dispatcher), new(*router.Router)),

	// Runtimes
	LambdaHandlerProvider,
	CacheHandlerProvider,
	HTTPServeMuxProvider,
	HTTPGracefulServerProvider,
	HealthServerProvider,
	GRPCServerProvider,
	NewApp,
)
