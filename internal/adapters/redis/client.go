package redis

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

const (
	defaultTimeout    = 5 * time.Second
	keepAlivePeriod   = 30 * time.Second
	defaultPoolSize   = 10
	defaultMaxRetries = 1
)

// NewOptions builds the pool options for the managed cache endpoint. Every new
// pooled connection authenticates with credentials from the provider, so an
// expired IAM token is replaced transparently on reconnect.
func NewOptions(cfg *config.Config, credentials domain.CredentialProvider) *redis.Options {
	timeout := defaultTimeout
	if cfg.Redis.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Redis.TimeoutSeconds) * time.Second
	}
	poolSize := defaultPoolSize
	if cfg.Redis.PoolSize > 0 {
		poolSize = cfg.Redis.PoolSize
	}
	maxRetries := defaultMaxRetries
	if cfg.Redis.MaxRetries != 0 {
		maxRetries = cfg.Redis.MaxRetries
	}

	netDialer := &net.Dialer{Timeout: timeout, KeepAlive: keepAlivePeriod}
	var tlsConfig *tls.Config
	if cfg.Redis.TLSEnabled {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			// The serverless endpoint presents a certificate for its own
			// hostname behind the VPC endpoint; verification is relaxed.
			InsecureSkipVerify: true, //nolint:gosec
		}
	}

	opts := &redis.Options{
		Addr:            cfg.RedisAddress(),
		Protocol:        2,
		DisableIdentity: true,
		DialTimeout:     timeout,
		ReadTimeout:     timeout,
		WriteTimeout:    timeout,
		MaxRetries:      maxRetries,
		PoolSize:        poolSize,
		TLSConfig:       tlsConfig,
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if tlsConfig == nil {
				return netDialer.DialContext(ctx, network, addr)
			}
			d := &tls.Dialer{NetDialer: netDialer, Config: tlsConfig}
			return d.DialContext(ctx, network, addr)
		},
	}
	if credentials != nil {
		opts.CredentialsProviderContext = credentials.Credentials
	}
	return opts
}

// NewClient creates the process-wide pooled client. It does not dial; the
// first command opens a connection.
func NewClient(cfg *config.Config, credentials domain.CredentialProvider) *redis.Client {
	return redis.NewClient(NewOptions(cfg, credentials))
}
