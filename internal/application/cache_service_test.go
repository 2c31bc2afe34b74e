package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/logger"
	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
	mock_domain "gitlab.com/timkado/api/prebid-cache-service/internal/domain/mock"
)

var errBackend = fmt.Errorf("%w: GET: connection refused", domain.ErrCacheUnavailable)

type serviceFixture struct {
	store   *mock_domain.MockItemStore
	metrics *mock_domain.MockMetricsRecorder
	service *CacheService
}

func newServiceFixture(t *testing.T, opts ...ServiceOption) serviceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mock_domain.NewMockItemStore(ctrl)
	metrics := mock_domain.NewMockMetricsRecorder(ctrl)
	log := logger.NewZapAdapterFromLogger(zaptest.NewLogger(t))
	return serviceFixture{
		store:   store,
		metrics: metrics,
		service: NewCacheService(store, metrics, log, opts...),
	}
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 7, 8, 9, 0, time.FixedZone("CET", 3600))

	t.Run("healthy", func(t *testing.T) {
		f := newServiceFixture(t, WithNow(func() time.Time { return now }))
		f.store.EXPECT().Ping(gomock.Any()).Return(nil)

		status, err := f.service.Health(ctx)
		require.NoError(t, err)
		assert.Equal(t, HealthStatus{Status: "healthy", Cache: "connected", Timestamp: "2024-03-05 06:08:09 UTC"}, status)
	})

	t.Run("ping fails", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.EXPECT().Ping(gomock.Any()).Return(errBackend)

		_, err := f.service.Health(ctx)
		assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	})
}

func TestGetItem(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.EXPECT().Get(gomock.Any(), "k").Return([]byte(`{"type":"xml","value":"<VAST/>"}`), nil)
		f.store.EXPECT().TTL(gomock.Any(), "k").Return(120*time.Second+500*time.Millisecond, nil)
		f.metrics.EXPECT().Count(gomock.Any(), domain.MetricGetSuccess, 1.0)

		item, err := f.service.GetItem(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, domain.ContentTypeXML, item.Type)
		assert.Equal(t, `"<VAST/>"`, string(item.Value))
		assert.Equal(t, 120, item.MaxAge)
	})

	t.Run("negative ttl clamps to zero", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.EXPECT().Get(gomock.Any(), "k").Return([]byte(`{"type":"json","value":{}}`), nil)
		f.store.EXPECT().TTL(gomock.Any(), "k").Return(time.Duration(-1), nil)
		f.metrics.EXPECT().Count(gomock.Any(), domain.MetricGetSuccess, 1.0)

		item, err := f.service.GetItem(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 0, item.MaxAge)
	})

	t.Run("not found", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.EXPECT().Get(gomock.Any(), "missing").Return(nil, domain.ErrItemNotFound)
		f.metrics.EXPECT().Count(gomock.Any(), domain.MetricGetNotFound, 1.0)

		_, err := f.service.GetItem(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.EXPECT().Get(gomock.Any(), "k").Return([]byte{0xff, 0xfe}, nil)

		_, err := f.service.GetItem(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrInvalidEncoding)
	})

	t.Run("corrupted entry is not a miss", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.EXPECT().Get(gomock.Any(), "k").Return([]byte(`{"value":"x"}`), nil)

		_, err := f.service.GetItem(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrCorruptedEntry)
		assert.False(t, errors.Is(err, domain.ErrItemNotFound))
	})

	t.Run("backend error", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.EXPECT().Get(gomock.Any(), "k").Return(nil, errBackend)

		_, err := f.service.GetItem(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	})

	t.Run("ttl error", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.EXPECT().Get(gomock.Any(), "k").Return([]byte(`{"type":"json","value":1}`), nil)
		f.store.EXPECT().TTL(gomock.Any(), "k").Return(time.Duration(0), errBackend)

		_, err := f.service.GetItem(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	})
}

func TestParsePutRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("empty body", func(t *testing.T) {
		f := newServiceFixture(t)
		f.metrics.EXPECT().Count(gomock.Any(), domain.MetricPostFail, 1.0)

		_, err := f.service.ParsePutRequest(ctx, "  \n")
		assert.ErrorIs(t, err, domain.ErrMissingRequestBody)
	})

	t.Run("invalid body", func(t *testing.T) {
		f := newServiceFixture(t)
		f.metrics.EXPECT().Count(gomock.Any(), domain.MetricPostFail, 1.0)

		_, err := f.service.ParsePutRequest(ctx, `{"puts":[{"type":"csv","value":"x"}]}`)
		assert.ErrorIs(t, err, domain.ErrInvalidRequestBody)
	})

	t.Run("valid body emits nothing", func(t *testing.T) {
		f := newServiceFixture(t)

		batch, err := f.service.ParsePutRequest(ctx, `{"puts":[{"type":"json","value":true}]}`)
		require.NoError(t, err)
		assert.Len(t, batch.Items, 1)
	})
}

func sequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("key-%d", n)
	}
}

func TestPutItems(t *testing.T) {
	ctx := context.Background()
	ttl := func(n int) *int { return &n }
	batch := domain.PutBatch{Items: []domain.PutItem{
		{Type: domain.ContentTypeXML, Value: json.RawMessage(`"<VAST/>"`)},
		{Type: domain.ContentTypeJSON, Value: json.RawMessage(`{"a":1}`), TTLSeconds: ttl(60)},
	}}

	t.Run("stores in order", func(t *testing.T) {
		f := newServiceFixture(t, WithKeyGenerator(sequentialKeys()))
		gomock.InOrder(
			f.metrics.EXPECT().Count(gomock.Any(), domain.MetricPostCount, 2.0),
			f.store.EXPECT().SetEx(gomock.Any(), "key-1", 300*time.Second, `{"type":"xml","value":"<VAST/>"}`).Return(nil),
			f.store.EXPECT().SetEx(gomock.Any(), "key-2", 60*time.Second, `{"type":"json","value":{"a":1}}`).Return(nil),
			f.metrics.EXPECT().Count(gomock.Any(), domain.MetricPostSuccess, 1.0),
		)

		results, err := f.service.PutItems(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, []PutResult{{UUID: "key-1"}, {UUID: "key-2"}}, results)
	})

	t.Run("random keys are unique", func(t *testing.T) {
		f := newServiceFixture(t)
		f.metrics.EXPECT().Count(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
		f.store.EXPECT().SetEx(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

		results, err := f.service.PutItems(ctx, batch)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.NotEqual(t, results[0].UUID, results[1].UUID)
		assert.Len(t, results[0].UUID, 36)
	})

	t.Run("empty batch succeeds", func(t *testing.T) {
		f := newServiceFixture(t)
		gomock.InOrder(
			f.metrics.EXPECT().Count(gomock.Any(), domain.MetricPostCount, 0.0),
			f.metrics.EXPECT().Count(gomock.Any(), domain.MetricPostSuccess, 1.0),
		)

		results, err := f.service.PutItems(ctx, domain.PutBatch{})
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("failure aborts remaining items", func(t *testing.T) {
		f := newServiceFixture(t, WithKeyGenerator(sequentialKeys()))
		f.metrics.EXPECT().Count(gomock.Any(), domain.MetricPostCount, 2.0)
		f.store.EXPECT().SetEx(gomock.Any(), "key-1", gomock.Any(), gomock.Any()).Return(errBackend)
		f.metrics.EXPECT().Count(gomock.Any(), domain.MetricPostFail, 1.0)

		results, err := f.service.PutItems(ctx, batch)
		assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
		assert.Nil(t, results)
	})
}
