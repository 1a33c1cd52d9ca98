package rest

import (
	"net/http"

	"github.com/abgdnv/cartsync/pkg/client/httpx"
	"github.com/abgdnv/cartsync/pkg/config"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewTransport builds the round-tripper used for the cart service:
// retry with backoff, then the circuit breaker, then the per-attempt timeout, then an otel-instrumented transport.
func NewTransport(gw config.GatewayConfig, res config.ResilienceConfig, cb *gobreaker.CircuitBreaker[*http.Response]) http.RoundTripper {
	return httpx.Chain(
		otelhttp.NewTransport(http.DefaultTransport),
		httpx.Retry(res.Retry),
		httpx.Breaker(cb),
		httpx.Timeout(gw.AttemptTimeout),
	)
}
