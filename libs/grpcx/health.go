package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/groomdesk/libs/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health wraps the standard health server and drives it from readiness checks.
type Health struct {
	srv     *health.Server
	service string
	checks  []runtime.ReadyCheck
}

func RegisterHealth(s *grpc.Server, service string, checks []runtime.ReadyCheck) *Health {
	h := &Health{srv: health.NewServer(), service: service, checks: checks}
	healthpb.RegisterHealthServer(s, h.srv)
	h.srv.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Refresh re-runs the readiness checks and publishes the result.
func (h *Health) Refresh(ctx context.Context) bool {
	_, ok := runtime.RunChecks(ctx, h.checks)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(h.service, status)
	return ok
}

// Watch refreshes health every interval until ctx ends, then marks the server down.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Serve listens on addr until ctx is cancelled.
func Serve(ctx context.Context, s *grpc.Server, addr string, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	logger.Info("grpc server starting", "addr", addr)
	return s.Serve(lis)
}
