package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/cartsync/internal/config"
	"github.com/abgdnv/cartsync/internal/domain"
	grpcImpl "github.com/abgdnv/cartsync/internal/transport/grpc"
	pkgconfig "github.com/abgdnv/cartsync/pkg/config"
	"github.com/abgdnv/cartsync/pkg/messaging"
	"github.com/abgdnv/cartsync/pkg/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

// remoteCart is a stand-in for the remote cart service.
type remoteCart struct {
	mu       sync.Mutex
	items    []domain.Item
	failNext int
}

func (rc *remoteCart) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/cart", func(w http.ResponseWriter, _ *http.Request) {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"items": rc.items})
	})
	r.Put("/api/v1/cart/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		if rc.failNext > 0 {
			rc.failNext--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Quantity int `json:"quantity"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		for i := range rc.items {
			if rc.items[i].CartID == chi.URLParam(req, "id") {
				rc.items[i].Quantity = body.Quantity
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"is_success": true, "data": map[string]int{"quantity": body.Quantity}})
	})
	r.Delete("/api/v1/cart/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		kept := rc.items[:0]
		for _, item := range rc.items {
			if item.CartID != chi.URLParam(req, "id") {
				kept = append(kept, item)
			}
		}
		rc.items = kept
		_ = json.NewEncoder(w).Encode(map[string]any{"is_success": true})
	})
	return r
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Gateway: pkgconfig.GatewayConfig{BaseURL: baseURL, CallTimeout: 2 * time.Second, AttemptTimeout: time.Second},
		Session: pkgconfig.SessionConfig{Token: "opaque-session-token"},
		Resilience: pkgconfig.ResilienceConfig{
			Retry:          pkgconfig.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
			CircuitBreaker: pkgconfig.CircuitBreakerConfig{ConsecutiveFailures: 10, OpenTimeout: time.Minute, HalfOpenRequests: 1},
		},
	}
}

func do(t *testing.T, method, url, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func cartOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	cart, ok := body["cart"].(map[string]any)
	require.True(t, ok, "response must carry the cart: %v", body)
	return cart
}

func TestCartEventAPI_EndToEnd(t *testing.T) {
	// given
	remote := &remoteCart{items: []domain.Item{{CartID: "1", ProductID: "p-1", Name: "Mug", Price: 50, Quantity: 2, Stock: 5}}}
	remoteSrv := httptest.NewServer(remote.handler())
	t.Cleanup(remoteSrv.Close)

	_, metricsHandler, err := telemetry.NewMeterProvider("cartsync-test")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := SetupDependencies(testConfig(remoteSrv.URL), messaging.NoopPublisher{}, metricsHandler, logger)
	api := httptest.NewServer(SetupHttpHandler(deps))
	t.Cleanup(api.Close)
	items := api.URL + "/api/v1/cart/items/1"

	// when the cart is loaded
	code, body := do(t, http.MethodPost, api.URL+"/api/v1/cart/load", "", nil)

	// then
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(100), body["total_amount"])

	// when the quantity is raised within stock
	code, body = do(t, http.MethodPut, items, `{"quantity":3}`, nil)

	// then
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(150), cartOf(t, body)["total_amount"])

	// when the quantity exceeds stock
	code, body = do(t, http.MethodPut, items, `{"quantity":6}`, nil)

	// then
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "validation", body["kind"])

	// when the cart service keeps failing
	remote.mu.Lock()
	remote.failNext = 2
	remote.mu.Unlock()
	code, body = do(t, http.MethodPost, items+"/increment", "", nil)

	// then the change is rolled back
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "transport", body["kind"])
	assert.Equal(t, 3, deps.CartService.Snapshot().Items[0].Quantity)

	// when removal to zero is not confirmed
	code, _ = do(t, http.MethodPut, items, `{"quantity":0}`, nil)

	// then
	assert.Equal(t, http.StatusConflict, code)

	// when the line is deleted
	code, body = do(t, http.MethodDelete, items, "", nil)

	// then
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), cartOf(t, body)["total_amount"])
	remote.mu.Lock()
	assert.Empty(t, remote.items)
	remote.mu.Unlock()

	// and the coordinator counters are exported
	metricsReq, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer metricsReq.Body.Close()
	exposition, err := io.ReadAll(metricsReq.Body)
	require.NoError(t, err)
	assert.Contains(t, string(exposition), "cart_mutations")
	assert.Contains(t, string(exposition), "cart_rollbacks")
}

func TestSetupDependencies_BreakerDrivesHealth(t *testing.T) {
	// given
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(remoteSrv.Close)
	cfg := testConfig(remoteSrv.URL)
	cfg.Resilience.Retry.MaxAttempts = 1
	cfg.Resilience.CircuitBreaker.ConsecutiveFailures = 1
	deps := SetupDependencies(cfg, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	api := httptest.NewServer(SetupHttpHandler(deps))
	t.Cleanup(api.Close)

	lis := bufconn.Listen(1024 * 1024)
	grpcServer := SetupGrpcServer(deps, false)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	healthClient := healthpb.NewHealthClient(conn)
	gatewayHealth := &healthpb.HealthCheckRequest{Service: grpcImpl.GatewayService}

	before, err := healthClient.Check(context.Background(), gatewayHealth)
	require.NoError(t, err)

	// when
	code, _ := do(t, http.MethodPost, api.URL+"/api/v1/cart/load", "", nil)

	// then
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, before.GetStatus())
	after, err := healthClient.Check(context.Background(), gatewayHealth)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, after.GetStatus())

	metrics, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	_ = metrics.Body.Close()
	assert.Equal(t, http.StatusNotFound, metrics.StatusCode, "metrics are not served when disabled")
}
