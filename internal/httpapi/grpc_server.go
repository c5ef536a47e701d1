package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"agendafit.app/internal/obs"
)

// GRPCHealth mirrors the readiness probe into the standard gRPC health service,
// both for the overall server ("") and for serviceName.
type GRPCHealth struct {
	readiness readinessChecker
	srv       *health.Server
}

func NewGRPCHealth(r readinessChecker) *GRPCHealth {
	return &GRPCHealth{readiness: r, srv: health.NewServer()}
}

// NewGRPCServer creates a gRPC server with the health service registered.
func NewGRPCServer(h *GRPCHealth, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.srv)
	return s
}

// Refresh runs the readiness probe once and publishes the result.
func (h *GRPCHealth) Refresh(ctx context.Context) error {
	status := healthpb.HealthCheckResponse_SERVING
	err := h.readiness.Check(ctx)
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	obs.SetReady(err == nil)
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
	return err
}

// Run refreshes the status every interval until ctx ends, then marks the
// server as shutting down.
func (h *GRPCHealth) Run(ctx context.Context, interval time.Duration) {
	if err := h.Refresh(ctx); err != nil {
		obs.Logger().Warn("readiness check failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			if err := h.Refresh(ctx); err != nil {
				obs.Logger().Warn("readiness check failed", zap.Error(err))
			}
		}
	}
}
