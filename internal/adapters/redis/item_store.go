package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

// Commands is the subset of the go-redis API the item store issues.
type Commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// ItemStoreAdapter implements domain.ItemStore on top of a Redis client.
// Backend failures are logged here and surface as domain.ErrCacheUnavailable.
type ItemStoreAdapter struct {
	client Commands
	logger domain.Logger
}

var _ domain.ItemStore = (*ItemStoreAdapter)(nil)

// NewItemStoreAdapter creates a new ItemStoreAdapter.
func NewItemStoreAdapter(client Commands, logger domain.Logger) *ItemStoreAdapter {
	if client == nil {
		panic("redis client cannot be nil in NewItemStoreAdapter")
	}
	if logger == nil {
		panic("logger cannot be nil in NewItemStoreAdapter")
	}
	return &ItemStoreAdapter{client: client, logger: logger}
}

// Ping checks that the backend answers.
func (a *ItemStoreAdapter) Ping(ctx context.Context) error {
	if err := a.client.Ping(ctx).Err(); err != nil {
		return a.cacheError(ctx, "PING", "", err)
	}
	return nil
}

// Get returns the raw stored bytes for key.
func (a *ItemStoreAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		a.logger.Debug(ctx, "Cache miss", "key", key)
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, a.cacheError(ctx, "GET", key, err)
	}
	return val, nil
}

// SetEx stores value under key with the given lifetime.
func (a *ItemStoreAdapter) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	if err := a.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return a.cacheError(ctx, "SETEX", key, err)
	}
	a.logger.Debug(ctx, "Stored cache item", "key", key, "ttl", ttl.String())
	return nil
}

// TTL returns the remaining lifetime of key. Negative results from the
// backend (no expiry, missing key) are returned as-is.
func (a *ItemStoreAdapter) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := a.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, a.cacheError(ctx, "TTL", key, err)
	}
	return ttl, nil
}

func (a *ItemStoreAdapter) cacheError(ctx context.Context, command, key string, err error) error {
	a.logger.Error(ctx, "Redis command failed", "command", command, "key", key, "error", err)
	return fmt.Errorf("%w: %s: %v", domain.ErrCacheUnavailable, command, err)
}
