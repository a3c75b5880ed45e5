package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"semaphore/dashboard/internal/logger"
	"semaphore/dashboard/internal/storage"
)

// ServiceName is the health service name reported alongside the overall
// ("") status.
const ServiceName = "semaphore.dashboard"

// Health reports SERVING while the session storage backend answers pings.
type Health struct {
	server  *health.Server
	backend storage.Backend
	log     logger.Logger
}

func NewHealth(backend storage.Backend, log logger.Logger) *Health {
	if log == nil {
		log = logger.Nop{}
	}
	h := &Health{server: health.NewServer(), backend: backend, log: log}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// NewServer builds the gRPC server with the health service registered. When
// serviceToken is set every call must carry it in x-service-token.
func NewServer(serviceToken string, h *Health) (*grpc.Server, error) {
	var opts []grpc.ServerOption
	if serviceToken != "" {
		unary, err := NewServiceAuthUnaryInterceptor(serviceToken)
		if err != nil {
			return nil, err
		}
		stream, err := NewServiceAuthStreamInterceptor(serviceToken)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.ChainUnaryInterceptor(unary), grpc.ChainStreamInterceptor(stream))
	}
	server := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(server, h.server)
	return server, nil
}

// Check pings the backend once and publishes the result.
func (h *Health) Check(ctx context.Context) error {
	if err := h.backend.Ping(ctx); err != nil {
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Watch runs Check every interval until ctx ends, then marks the service as
// shutting down.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	check := func() {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		if err := h.Check(checkCtx); err != nil && ctx.Err() == nil {
			h.log.Warn("health: storage ping failed", err)
		}
	}

	check()
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.server.Shutdown()
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

func (h *Health) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}
