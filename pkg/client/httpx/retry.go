package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abgdnv/cartsync/pkg/config"
	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"
)

var errTransientStatus = errors.New("transient upstream status")

// Retry re-sends idempotent requests on network errors and transient statuses with exponential backoff.
// The last response is returned as is once attempts are exhausted. An open circuit is never retried.
func Retry(cfg config.RetryConfig) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if cfg.MaxAttempts <= 1 || !isIdempotent(req.Method) || (req.Body != nil && req.Body != http.NoBody && req.GetBody == nil) {
				return next.RoundTrip(req)
			}

			b := backoff.NewExponentialBackOff()
			b.InitialInterval = cfg.InitialBackoff
			if cfg.MaxBackoff > 0 {
				b.MaxInterval = cfg.MaxBackoff
			}

			var attempt uint
			operation := func() (*http.Response, error) {
				attempt++
				attemptReq, err := rewind(req)
				if err != nil {
					return nil, backoff.Permanent(err)
				}
				resp, err := next.RoundTrip(attemptReq)
				if err != nil {
					if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || req.Context().Err() != nil {
						return nil, backoff.Permanent(err)
					}
					return nil, err
				}
				if isTransientStatus(resp.StatusCode) && attempt < cfg.MaxAttempts {
					drain(resp)
					return nil, fmt.Errorf("%w: %d", errTransientStatus, resp.StatusCode)
				}
				return resp, nil
			}

			resp, err := backoff.Retry(req.Context(), operation,
				backoff.WithBackOff(b),
				backoff.WithMaxTries(cfg.MaxAttempts),
			)
			if err != nil {
				var permanent *backoff.PermanentError
				if errors.As(err, &permanent) {
					err = permanent.Unwrap()
				}
				return nil, err
			}
			return resp, nil
		})
	}
}

// rewind clones req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
