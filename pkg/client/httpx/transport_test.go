package httpx

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/cartsync/pkg/config"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer answers with the queued status codes, then 200.
// It records how many requests reached it and the last body it saw.
type scriptedServer struct {
	*httptest.Server
	calls    atomic.Int32
	statuses []int
	lastBody atomic.Value
	delay    time.Duration
}

func newScriptedServer(t *testing.T, statuses ...int) *scriptedServer {
	t.Helper()
	s := &scriptedServer{statuses: statuses}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(s.calls.Add(1))
		body, _ := io.ReadAll(r.Body)
		s.lastBody.Store(string(body))
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}
		if n <= len(s.statuses) {
			w.WriteHeader(s.statuses[n-1])
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(s.Close)
	return s
}

func retryCfg() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func breakerCfg() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute, HalfOpenRequests: 1}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		statuses   []int
		wantStatus int
		wantCalls  int32
	}{
		{name: "success first try", method: http.MethodGet, wantStatus: http.StatusOK, wantCalls: 1},
		{name: "retries transient statuses", method: http.MethodPut, statuses: []int{503, 502}, wantStatus: http.StatusOK, wantCalls: 3},
		{name: "returns last transient response when exhausted", method: http.MethodGet, statuses: []int{503, 503, 503, 503}, wantStatus: http.StatusServiceUnavailable, wantCalls: 3},
		{name: "does not retry business status", method: http.MethodDelete, statuses: []int{409}, wantStatus: http.StatusConflict, wantCalls: 1},
		{name: "does not retry non idempotent method", method: http.MethodPost, statuses: []int{503}, wantStatus: http.StatusServiceUnavailable, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			srv := newScriptedServer(t, tt.statuses...)
			client := &http.Client{Transport: Chain(http.DefaultTransport, Retry(retryCfg()))}
			req, err := http.NewRequest(tt.method, srv.URL, strings.NewReader(`{"quantity":3}`))
			require.NoError(t, err)

			// when
			resp, err := client.Do(req)

			// then
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, srv.calls.Load())
			assert.Equal(t, `{"quantity":3}`, srv.lastBody.Load(), "body must be replayed on every attempt")
		})
	}
}

func TestTimeout_RetriesSlowAttempts(t *testing.T) {
	// given
	srv := newScriptedServer(t)
	srv.delay = 200 * time.Millisecond
	client := &http.Client{Transport: Chain(http.DefaultTransport, Retry(retryCfg()), Timeout(20*time.Millisecond))}

	// when
	_, err := client.Get(srv.URL)

	// then
	require.Error(t, err)
	assert.Eventually(t, func() bool { return srv.calls.Load() == 3 }, time.Second, 10*time.Millisecond)
}

func TestTimeout_BodyReadableAfterReturn(t *testing.T) {
	// given
	srv := newScriptedServer(t)
	client := &http.Client{Transport: Chain(http.DefaultTransport, Timeout(time.Second))}

	// when
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())

	// then
	require.NoError(t, readErr)
	assert.Equal(t, "ok", string(body))
}

func TestBreaker_OpensOnTransientFailures(t *testing.T) {
	// given
	srv := newScriptedServer(t, 500, 503, 502, 200)
	cb := NewCircuitBreaker("test", breakerCfg(), nil)
	client := &http.Client{Transport: Chain(http.DefaultTransport, Breaker(cb))}

	// when
	for range 3 {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err, "failing statuses are still returned to the caller")
		_ = resp.Body.Close()
	}
	_, err := client.Get(srv.URL)

	// then
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, int32(3), srv.calls.Load(), "an open circuit must not reach the server")
}

func TestBreaker_IgnoresBusinessStatuses(t *testing.T) {
	// given
	srv := newScriptedServer(t, 404, 409, 422, 404, 409)
	cb := NewCircuitBreaker("test", breakerCfg(), nil)
	client := &http.Client{Transport: Chain(http.DefaultTransport, Breaker(cb))}

	// when
	for range 5 {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	// then
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestRetry_StopsOnOpenCircuit(t *testing.T) {
	// given
	srv := newScriptedServer(t, 503, 503, 503, 503, 503, 503)
	cb := NewCircuitBreaker("test", config.CircuitBreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute, HalfOpenRequests: 1}, nil)
	client := &http.Client{Transport: Chain(http.DefaultTransport, Retry(retryCfg()), Breaker(cb))}

	// when
	_, err := client.Get(srv.URL)

	// then
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestChain_Order(t *testing.T) {
	// given
	var trace []string
	mw := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				trace = append(trace, name)
				return next.RoundTrip(req)
			})
		}
	}
	base := RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		trace = append(trace, "base")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})

	// when
	_, err := Chain(base, mw("outer"), mw("inner")).RoundTrip(httptest.NewRequest(http.MethodGet, "/", nil))

	// then
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, trace)
}
