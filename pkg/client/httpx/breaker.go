package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abgdnv/cartsync/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// StatusError marks a response whose status counts as an upstream failure for the breaker.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.StatusCode)
}

// NewCircuitBreaker creates a breaker that trips on network errors and transient statuses.
// Business outcomes such as 404 or 409 do not count as failures.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker[*http.Response] {
	st := gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.HalfOpenRequests,
		Timeout:       cfg.OpenTimeout,
		OnStateChange: onStateChange,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(cfg.ErrorRatePercent > 0 && total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
	return gobreaker.NewCircuitBreaker[*http.Response](st)
}

// Breaker routes every round trip through cb. While the circuit is open the request fails fast
// with gobreaker.ErrOpenState and never reaches next.
func Breaker(cb *gobreaker.CircuitBreaker[*http.Response]) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := cb.Execute(func() (*http.Response, error) {
				resp, err := next.RoundTrip(req)
				if err != nil {
					return nil, err
				}
				if isTransientStatus(resp.StatusCode) || resp.StatusCode >= http.StatusInternalServerError {
					return resp, &StatusError{StatusCode: resp.StatusCode}
				}
				return resp, nil
			})
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return resp, nil
			}
			return resp, err
		})
	}
}
