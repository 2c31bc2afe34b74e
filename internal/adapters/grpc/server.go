package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"gitlab.com/timkado/api/prebid-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
	"gitlab.com/timkado/api/prebid-cache-service/pkg/safego"
)

// ErrDisabled is returned by Start when no gRPC port is configured.
var ErrDisabled = errors.New("gRPC server disabled")

// Server wraps the gRPC server exposing the health service.
type Server struct {
	gsrv        *grpc.Server
	logger      domain.Logger
	cfgProvider config.Provider
	appCtx      context.Context // server lifecycle, derived from the app context
	cancelCtx   context.CancelFunc
	addr        net.Addr
}

// NewServer creates a gRPC server with the health service registered.
func NewServer(appCtx context.Context, logger domain.Logger, cfgProvider config.Provider, health *HealthServer) *Server {
	gsrv := grpc.NewServer()
	healthpb.RegisterHealthServer(gsrv, health)

	serverCtx, cancel := context.WithCancel(appCtx)
	return &Server{
		gsrv:        gsrv,
		logger:      logger,
		cfgProvider: cfgProvider,
		appCtx:      serverCtx,
		cancelCtx:   cancel,
	}
}

// Start listens on the configured port and serves in the background until
// the server context is cancelled.
func (s *Server) Start() error {
	port := s.cfgProvider.Get().Server.GRPCPort
	if port == 0 {
		s.logger.Info(s.appCtx, "gRPC port is 0; gRPC health server will not start")
		return ErrDisabled
	}
	return s.serve(fmt.Sprintf(":%d", port))
}

func (s *Server) serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error(s.appCtx, "Failed to listen for gRPC", "address", addr, "error", err)
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}
	s.addr = lis.Addr()
	s.logger.Info(s.appCtx, "gRPC server starting", "address", s.addr.String())

	safego.Execute(s.appCtx, s.logger, "GRPCServerServe", func() {
		if err := s.gsrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error(s.appCtx, "gRPC server failed to serve", "error", err)
		}
		s.cancelCtx()
	})

	safego.Execute(s.appCtx, s.logger, "GRPCServerContextWatcher", func() {
		<-s.appCtx.Done()
		s.gsrv.GracefulStop()
		s.logger.Info(context.Background(), "gRPC server gracefully stopped")
	})
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// GracefulStop cancels the server context, which triggers a graceful stop.
func (s *Server) GracefulStop() {
	s.cancelCtx()
}
