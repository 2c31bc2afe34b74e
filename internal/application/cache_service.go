package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

// HealthTimestampLayout renders times as "YYYY-MM-DD HH:MM:SS UTC".
const HealthTimestampLayout = "2006-01-02 15:04:05 UTC"

// HealthStatus is the body returned by the health check.
type HealthStatus struct {
	Status    string `json:"status"`
	Cache     string `json:"cache"`
	Timestamp string `json:"timestamp"`
}

// RetrievedItem is a stored item ready to be served.
type RetrievedItem struct {
	Type   domain.ContentType
	Value  json.RawMessage
	MaxAge int // remaining lifetime in seconds, never negative
}

// PutResult identifies one stored item.
type PutResult struct {
	UUID string `json:"uuid"`
}

// CacheService implements the health, get and put operations against the
// item store. One instance is shared by every request a process handles.
type CacheService struct {
	store   domain.ItemStore
	metrics domain.MetricsRecorder
	logger  domain.Logger
	newKey  func() string
	now     func() time.Time
}

// ServiceOption customizes a CacheService.
type ServiceOption func(*CacheService)

// WithKeyGenerator replaces the random UUID key generator.
func WithKeyGenerator(fn func() string) ServiceOption {
	return func(s *CacheService) { s.newKey = fn }
}

// WithNow replaces the clock used for health timestamps.
func WithNow(fn func() time.Time) ServiceOption {
	return func(s *CacheService) { s.now = fn }
}

// NewCacheService creates a new CacheService.
func NewCacheService(store domain.ItemStore, metrics domain.MetricsRecorder, logger domain.Logger, opts ...ServiceOption) *CacheService {
	if store == nil {
		panic("item store is nil in NewCacheService")
	}
	if metrics == nil {
		panic("metrics recorder is nil in NewCacheService")
	}
	if logger == nil {
		panic("logger is nil in NewCacheService")
	}
	s := &CacheService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		newKey:  uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Health pings the backend. A failed probe is returned unchanged; there is no
// degraded status.
func (s *CacheService) Health(ctx context.Context) (HealthStatus, error) {
	if err := s.store.Ping(ctx); err != nil {
		return HealthStatus{}, err
	}
	return HealthStatus{
		Status:    "healthy",
		Cache:     "connected",
		Timestamp: s.now().UTC().Format(HealthTimestampLayout),
	}, nil
}

// GetItem loads the item stored under key.
func (s *CacheService) GetItem(ctx context.Context, key string) (RetrievedItem, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, domain.ErrItemNotFound) {
		s.metrics.Count(ctx, domain.MetricGetNotFound, 1)
		return RetrievedItem{}, err
	}
	if err != nil {
		return RetrievedItem{}, err
	}

	if !utf8.Valid(raw) {
		s.logger.Error(ctx, "Cached value is not valid UTF-8", "key", key)
		return RetrievedItem{}, fmt.Errorf("%w: key %s", domain.ErrInvalidEncoding, key)
	}

	item, err := domain.DecodeCachedItem(string(raw))
	if err != nil {
		s.logger.Error(ctx, "Cached value failed structural parse", "key", key, "error", err)
		return RetrievedItem{}, err
	}

	ttl, err := s.store.TTL(ctx, key)
	if err != nil {
		return RetrievedItem{}, err
	}

	s.metrics.Count(ctx, domain.MetricGetSuccess, 1)
	return RetrievedItem{
		Type:   item.Type,
		Value:  item.Value,
		MaxAge: maxAgeSeconds(ttl),
	}, nil
}

func maxAgeSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return int(ttl / time.Second)
}

// ParsePutRequest validates a raw put body. Rejections count as PostFail.
func (s *CacheService) ParsePutRequest(ctx context.Context, body string) (domain.PutBatch, error) {
	if strings.TrimSpace(body) == "" {
		s.metrics.Count(ctx, domain.MetricPostFail, 1)
		return domain.PutBatch{}, domain.ErrMissingRequestBody
	}
	batch, err := ValidatePutBody([]byte(body))
	if err != nil {
		s.metrics.Count(ctx, domain.MetricPostFail, 1)
		s.logger.Warn(ctx, "Rejected put request body", "error", err)
		return domain.PutBatch{}, err
	}
	return batch, nil
}

// PutItems stores every item of the batch under a fresh random key, in input
// order. A backend failure aborts the rest of the batch; items stored before
// the failure are left to expire on their own.
func (s *CacheService) PutItems(ctx context.Context, batch domain.PutBatch) ([]PutResult, error) {
	s.metrics.Count(ctx, domain.MetricPostCount, float64(len(batch.Items)))

	results := make([]PutResult, 0, len(batch.Items))
	for i, item := range batch.Items {
		ttl := domain.EffectiveTTL(item.TTLSeconds)
		key := s.newKey()

		record, err := domain.NewCachedItem(item.Type, item.Value).Marshal()
		if err != nil {
			s.metrics.Count(ctx, domain.MetricPostFail, 1)
			return nil, err
		}
		if err := s.store.SetEx(ctx, key, ttl, record); err != nil {
			s.metrics.Count(ctx, domain.MetricPostFail, 1)
			s.logger.Error(ctx, "Put batch aborted", "failed_index", i, "stored", len(results), "batch_size", len(batch.Items), "error", err)
			return nil, err
		}
		results = append(results, PutResult{UUID: key})
	}

	s.metrics.Count(ctx, domain.MetricPostSuccess, 1)
	s.logger.Info(ctx, "Stored put batch", "batch_size", len(results))
	return results, nil
}
