package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/logger"
	"gitlab.com/timkado/api/prebid-cache-service/internal/application"
	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

type stubChecker struct {
	err error
}

func (s stubChecker) Health(context.Context) (application.HealthStatus, error) {
	return application.HealthStatus{Status: "healthy"}, s.err
}

func TestHealthServerCheck(t *testing.T) {
	log := logger.NewZapAdapterFromLogger(zaptest.NewLogger(t))
	ctx := context.Background()

	resp, err := NewHealthServer(stubChecker{}, log).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	resp, err = NewHealthServer(stubChecker{err: domain.ErrCacheUnavailable}, log).Check(ctx, &healthpb.HealthCheckRequest{Service: CacheServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	_, err = NewHealthServer(stubChecker{}, log).Check(ctx, &healthpb.HealthCheckRequest{Service: "other"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServerServesHealth(t *testing.T) {
	log := logger.NewZapAdapterFromLogger(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewServer(ctx, log, config.NewStaticProvider(&config.Config{}), NewHealthServer(stubChecker{}, log))
	require.NoError(t, srv.serve("127.0.0.1:0"))
	defer srv.GracefulStop()

	conn, err := grpc.NewClient(srv.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServerStartDisabled(t *testing.T) {
	log := logger.NewZapAdapterFromLogger(zaptest.NewLogger(t))
	srv := NewServer(context.Background(), log, config.NewStaticProvider(&config.Config{}), NewHealthServer(stubChecker{}, log))
	assert.ErrorIs(t, srv.Start(), ErrDisabled)
}
