package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_ENDPOINT", "cache.example.com")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("CACHE_USER", "prebid-user")
	t.Setenv("CACHE_NAME", "prebid-cache")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("METRICS_NAMESPACE", "PrebidCache")
	t.Setenv("RESOURCE_PREFIX", "stack-a")
	t.Setenv("VIPER_CONFIG_NAME", "")
}

func TestNewViperProviderFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_TLS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "debug")

	p, err := NewViperProvider(context.Background(), zaptest.NewLogger(t), false)
	require.NoError(t, err)
	cfg := p.Get()

	assert.Equal(t, "cache.example.com", cfg.Redis.Endpoint)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.False(t, cfg.Redis.TLSEnabled)
	assert.Equal(t, "prebid-user", cfg.Cache.User)
	assert.Equal(t, "prebid-cache", cfg.Cache.Name)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "PrebidCache", cfg.Metrics.Namespace)
	assert.Equal(t, "stack-a", cfg.Metrics.ResourcePrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "cache.example.com:6379", cfg.RedisAddress())
}

func TestNewViperProviderDefaults(t *testing.T) {
	setRequiredEnv(t)

	p, err := NewViperProvider(context.Background(), zaptest.NewLogger(t), false)
	require.NoError(t, err)
	cfg := p.Get()

	assert.True(t, cfg.Redis.TLSEnabled)
	assert.Equal(t, 5, cfg.Redis.TimeoutSeconds)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 1, cfg.Redis.MaxRetries)
	assert.True(t, cfg.Cache.Serverless)
	assert.True(t, cfg.Metrics.CloudWatchEnabled)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 0, cfg.Server.GRPCPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "prebid-cache-service", cfg.App.ServiceName)
}

func TestNewViperProviderMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CACHE_USER", "   ")
	t.Setenv("RESOURCE_PREFIX", "")

	_, err := NewViperProvider(context.Background(), zaptest.NewLogger(t), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))
	assert.Contains(t, err.Error(), "CACHE_USER")
	assert.Contains(t, err.Error(), "RESOURCE_PREFIX")
	assert.NotContains(t, err.Error(), "REDIS_ENDPOINT")
}

func TestNewViperProviderConfigFile(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.yaml"), []byte("server:\n  http_port: 9090\nlog:\n  level: warn\n"), 0o600))
	t.Setenv("VIPER_CONFIG_NAME", "local")
	t.Setenv("VIPER_CONFIG_PATH", dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, err := NewViperProvider(ctx, zaptest.NewLogger(t), false)
	require.NoError(t, err)
	assert.Equal(t, 9090, p.Get().Server.HTTPPort)
	assert.Equal(t, "warn", p.Get().Log.Level)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{
		Redis:   RedisConfig{Endpoint: "h", Port: 70000},
		Cache:   CacheConfig{User: "u", Name: "n"},
		AWS:     AWSConfig{Region: "r"},
		Metrics: MetricsConfig{Namespace: "ns", ResourcePrefix: "p"},
	}
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "REDIS_PORT")

	cfg.Redis.Port = 6379
	assert.NoError(t, cfg.Validate())
}

func TestStaticProvider(t *testing.T) {
	cfg := &Config{}
	p := NewStaticProvider(cfg)
	p.OnChange(func(*Config) { t.Fatal("static provider must not notify") })
	assert.Same(t, cfg, p.Get())
}
