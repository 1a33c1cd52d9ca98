// Package grpc exposes the availability of the cart service over the standard gRPC health protocol.
package grpc

import (
	"log/slog"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GatewayService is the health service name reporting whether the cart service can be reached.
const GatewayService = "cartsync.gateway"

// HealthServer reports the process as serving and GatewayService as serving while the gateway circuit is not open.
type HealthServer struct {
	srv    *health.Server
	logger *slog.Logger
}

// NewHealthServer creates a HealthServer with every service serving.
func NewHealthServer(logger *slog.Logger) *HealthServer {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(GatewayService, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{
		srv:    srv,
		logger: logger.With("component", "grpc-health"),
	}
}

// Register adds the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// OnBreakerStateChange is a gobreaker state change callback.
func (h *HealthServer) OnBreakerStateChange(name string, from, to gobreaker.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if to == gobreaker.StateOpen {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String(), "status", status.String())
	h.srv.SetServingStatus(GatewayService, status)
}

// Shutdown marks every service as not serving. Used at the start of graceful shutdown.
func (h *HealthServer) Shutdown() {
	h.srv.Shutdown()
}
