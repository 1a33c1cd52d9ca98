// Package app contains the application setup for cartsync.
package app

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/cartsync/internal/config"
	gatewayrest "github.com/abgdnv/cartsync/internal/gateway/rest"
	"github.com/abgdnv/cartsync/internal/service"
	"github.com/abgdnv/cartsync/internal/store"
	grpcImpl "github.com/abgdnv/cartsync/internal/transport/grpc"
	"github.com/abgdnv/cartsync/internal/transport/rest"
	"github.com/abgdnv/cartsync/pkg/auth"
	"github.com/abgdnv/cartsync/pkg/client/httpx"
	"github.com/abgdnv/cartsync/pkg/messaging"
	"github.com/abgdnv/cartsync/pkg/server"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
)

const breakerName = "cart-service"

type Dependencies struct {
	CartService service.CartService
	Session     *auth.SessionTokenSource
	Health      *grpcImpl.HealthServer
	Metrics     http.Handler
	Logger      *slog.Logger
}

// SetupDependencies wires the coordinator to the HTTP gateway of the cart service.
// metrics may be nil when the Prometheus exporter is disabled.
func SetupDependencies(cfg *config.Config, publisher messaging.Publisher, metrics http.Handler, logger *slog.Logger) *Dependencies {
	health := grpcImpl.NewHealthServer(logger)
	cb := httpx.NewCircuitBreaker(breakerName, cfg.Resilience.CircuitBreaker, health.OnBreakerStateChange)
	httpClient := &http.Client{Transport: gatewayrest.NewTransport(cfg.Gateway, cfg.Resilience, cb)}

	session := auth.NewSessionTokenSource(cfg.Session.Token, cfg.Session.ClockSkew)
	cartGateway := gatewayrest.NewClient(cfg.Gateway.BaseURL, httpClient, session, logger)

	coordinator := service.NewCoordinator(
		store.NewInMemoryStore(),
		cartGateway,
		service.ContextConfirmer{},
		publisher,
		cfg.Gateway.CallTimeout,
		logger,
	)

	return &Dependencies{
		CartService: coordinator,
		Session:     session,
		Health:      health,
		Metrics:     metrics,
		Logger:      logger,
	}
}

// SetupHttpHandler initializes the router and routes of the cart event API.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for cartsync.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	cartHandler := rest.NewHandler(deps.CartService, deps.Logger)
	cartHandler.RegisterRoutes(mux)
	rest.NewSessionHandler(deps.Session, deps.CartService, deps.Logger).RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
}

// SetupHttpServer creates and configures the HTTP server for the cart event API.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux, "cartsync")
}

// SetupGrpcServer initializes the gRPC server exposing the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(reflectionEnabled, deps.Health.Register)
}
