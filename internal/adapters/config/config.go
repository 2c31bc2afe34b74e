package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RedisConfig holds the cache endpoint and connection pool settings.
// Note: Fields should be exported (start with uppercase) to be unmarshalled by Viper.
type RedisConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Port           int    `mapstructure:"port"`
	TLSEnabled     bool   `mapstructure:"tls_enabled"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	PoolSize       int    `mapstructure:"pool_size"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// CacheConfig identifies the ElastiCache resource and the IAM-enabled user.
type CacheConfig struct {
	User       string `mapstructure:"user"`
	Name       string `mapstructure:"name"`
	Serverless bool   `mapstructure:"serverless"`
}

// AWSConfig holds deployment identity settings.
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// MetricsConfig holds CloudWatch metric settings.
type MetricsConfig struct {
	Namespace         string `mapstructure:"namespace"`
	ResourcePrefix    string `mapstructure:"resource_prefix"`
	CloudWatchEnabled bool   `mapstructure:"cloudwatch_enabled"`
}

// ServerConfig holds settings used only by the standalone HTTP runtime.
type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
	GRPCPort int `mapstructure:"grpc_port"` // 0 disables the gRPC health endpoint
}

// LogConfig holds logging-related configurations.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AppConfig holds application-specific configurations.
type AppConfig struct {
	ServiceName            string `mapstructure:"service_name"`
	SolutionID             string `mapstructure:"solution_id"`
	Version                string `mapstructure:"version"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// Config holds all configuration for the application.
type Config struct {
	Redis   RedisConfig   `mapstructure:"redis"`
	Cache   CacheConfig   `mapstructure:"cache"`
	AWS     AWSConfig     `mapstructure:"aws"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	App     AppConfig     `mapstructure:"app"`
}

// Provider defines an interface for accessing application configuration.
// This allows for easy mocking in tests and decouples the app from Viper.
type Provider interface {
	Get() *Config
	// OnChange registers a callback invoked after a successful reload.
	OnChange(fn func(*Config))
}

// envBindings maps config keys to the environment variables set on the
// deployed function. Names match the infrastructure stack, so no prefix.
var envBindings = map[string]string{
	"redis.endpoint":               "REDIS_ENDPOINT",
	"redis.port":                   "REDIS_PORT",
	"redis.tls_enabled":            "REDIS_TLS_ENABLED",
	"redis.timeout_seconds":        "REDIS_TIMEOUT_SECONDS",
	"redis.pool_size":              "REDIS_POOL_SIZE",
	"redis.max_retries":            "REDIS_MAX_RETRIES",
	"cache.user":                   "CACHE_USER",
	"cache.name":                   "CACHE_NAME",
	"cache.serverless":             "CACHE_SERVERLESS",
	"aws.region":                   "AWS_REGION",
	"metrics.namespace":            "METRICS_NAMESPACE",
	"metrics.resource_prefix":      "RESOURCE_PREFIX",
	"metrics.cloudwatch_enabled":   "CLOUDWATCH_METRICS_ENABLED",
	"server.http_port":             "HTTP_PORT",
	"server.grpc_port":             "GRPC_PORT",
	"log.level":                    "LOG_LEVEL",
	"app.service_name":             "SERVICE_NAME",
	"app.solution_id":              "SOLUTION_ID",
	"app.version":                  "SOLUTION_VERSION",
	"app.shutdown_timeout_seconds": "SHUTDOWN_TIMEOUT_SECONDS",
}

// requiredKeys must be present at cold start.
var requiredKeys = []string{
	"redis.endpoint",
	"redis.port",
	"cache.user",
	"cache.name",
	"aws.region",
	"metrics.namespace",
	"metrics.resource_prefix",
}

// ErrMissingConfig is wrapped by Validate for every absent required key.
var ErrMissingConfig = errors.New("missing required configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.tls_enabled", true)
	v.SetDefault("redis.timeout_seconds", 5)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 1)
	v.SetDefault("cache.serverless", true)
	v.SetDefault("metrics.cloudwatch_enabled", true)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("app.service_name", "prebid-cache-service")
	v.SetDefault("app.shutdown_timeout_seconds", 30)
}

// viperProvider implements the Provider interface using Viper.
type viperProvider struct {
	config atomic.Pointer[Config]
	logger *zap.Logger // zap directly, domain.Logger is built from this config

	mu        sync.Mutex
	listeners []func(*Config)
}

// NewViperProvider loads configuration from environment variables and an
// optional YAML file. When watch is true and a file was found, the file is
// re-read on change and on SIGHUP until appCtx is done.
func NewViperProvider(appCtx context.Context, logger *zap.Logger, watch bool) (Provider, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if name := os.Getenv("VIPER_CONFIG_NAME"); name != "" {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(os.Getenv("VIPER_CONFIG_PATH"))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				logger.Warn("Config file not found; relying on defaults and environment variables", zap.Error(err))
			} else {
				logger.Error("Failed to read config file", zap.Error(err))
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		logger.Error("Failed to unmarshal config", zap.Error(err))
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return nil, err
	}

	p := &viperProvider{logger: logger}
	p.config.Store(cfg)

	if watch && v.ConfigFileUsed() != "" {
		p.watch(appCtx, v)
	}

	logger.Info("Configuration loaded successfully", zap.String("config_file_used", v.ConfigFileUsed()))
	return p, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Cache.User = strings.TrimSpace(cfg.Cache.User)
	cfg.Redis.Endpoint = strings.TrimSpace(cfg.Redis.Endpoint)
	return cfg, nil
}

func (p *viperProvider) watch(appCtx context.Context, v *viper.Viper) {
	reload := func(source string) {
		newCfg, err := unmarshal(v)
		if err != nil {
			p.logger.Error("Failed to unmarshal reloaded config", zap.String("source", source), zap.Error(err))
			return
		}
		if err := newCfg.Validate(); err != nil {
			p.logger.Error("Reloaded config is invalid; keeping previous", zap.String("source", source), zap.Error(err))
			return
		}
		p.config.Store(newCfg)
		p.notify(newCfg)
		p.logger.Info("Configuration reloaded successfully", zap.String("source", source))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in SIGHUP handler goroutine",
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		defer signal.Stop(sigChan)
		for {
			select {
			case <-sigChan:
				if err := v.ReadInConfig(); err != nil {
					p.logger.Error("Failed to re-read config file on SIGHUP", zap.Error(err))
					continue
				}
				reload("sighup")
			case <-appCtx.Done():
				return
			}
		}
	}()

	v.OnConfigChange(func(e fsnotify.Event) {
		p.logger.Info("Config file changed", zap.String("name", e.Name), zap.String("op", e.Op.String()))
		reload("file_change")
	})
	v.WatchConfig()
}

func (p *viperProvider) notify(cfg *Config) {
	p.mu.Lock()
	listeners := append([]func(*Config){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// Get returns the current configuration.
func (p *viperProvider) Get() *Config {
	return p.config.Load()
}

// OnChange registers fn to run after each successful reload.
func (p *viperProvider) OnChange(fn func(*Config)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Validate reports every missing required setting in one error.
func (c *Config) Validate() error {
	var missing []string
	values := map[string]string{
		"redis.endpoint":          c.Redis.Endpoint,
		"cache.user":              c.Cache.User,
		"cache.name":              c.Cache.Name,
		"aws.region":              c.AWS.Region,
		"metrics.namespace":       c.Metrics.Namespace,
		"metrics.resource_prefix": c.Metrics.ResourcePrefix,
	}
	for _, key := range requiredKeys {
		if key == "redis.port" {
			if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
				missing = append(missing, envBindings[key])
			}
			continue
		}
		if values[key] == "" {
			missing = append(missing, envBindings[key])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// RedisAddress returns the host:port of the cache endpoint.
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Endpoint, c.Redis.Port)
}

// StaticProvider serves a fixed Config. Used by tests and by callers that
// build configuration programmatically.
type StaticProvider struct {
	Config *Config
}

// NewStaticProvider wraps cfg as a Provider.
func NewStaticProvider(cfg *Config) *StaticProvider {
	return &StaticProvider{Config: cfg}
}

// Get returns the wrapped configuration.
func (s *StaticProvider) Get() *Config { return s.Config }

// OnChange is a no-op; static configuration never reloads.
func (s *StaticProvider) OnChange(func(*Config)) {}
