package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"gitlab.com/timkado/api/prebid-cache-service/internal/application"
	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

// CacheServiceName is the service name reported by the health endpoint in
// addition to the empty (whole server) name.
const CacheServiceName = "prebid.cache.v1.Cache"

// HealthChecker is the subset of the cache service probed by Check.
type HealthChecker interface {
	Health(ctx context.Context) (application.HealthStatus, error)
}

// HealthServer reports cache reachability over the standard gRPC health
// protocol.
type HealthServer struct {
	healthpb.UnimplementedHealthServer
	checker HealthChecker
	logger  domain.Logger
}

// NewHealthServer creates a HealthServer backed by checker.
func NewHealthServer(checker HealthChecker, logger domain.Logger) *HealthServer {
	return &HealthServer{checker: checker, logger: logger}
}

// Check pings the cache. A failed ping is reported as NOT_SERVING rather
// than as an RPC error.
func (h *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if name := req.GetService(); name != "" && name != CacheServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
	}

	if _, err := h.checker.Health(ctx); err != nil {
		h.logger.Warn(ctx, "gRPC health check failed", "error", err)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
