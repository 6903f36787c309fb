// Package httpx provides the outbound HTTP plumbing shared by the tariff,
// weather and Home Assistant clients: a per-upstream circuit breaker wrapped
// around an http.RoundTripper.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	appLog "agiledash/internal/log"
)

// BreakerConfig controls when an upstream is considered down.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// OpenFor is how long the breaker rejects calls before letting one probe
	// request through.
	OpenFor time.Duration
}

// StatusError is returned through the breaker for 5xx responses so they count
// as failures. The response itself is still handed to the caller.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.Code)
}

// breakerTransport runs every round trip through a gobreaker.CircuitBreaker.
// Transport errors and 5xx responses count as failures; 4xx do not, since a
// 404 for tomorrow's prices is a normal answer.
type breakerTransport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

// NewTransport wraps next (http.DefaultTransport if nil) in a named circuit
// breaker.
func NewTransport(name string, next http.RoundTripper, cfg BreakerConfig) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if cfg.Failures == 0 {
		cfg.Failures = 3
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = time.Minute
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			appLog.Warn("circuit breaker state changed", "client", name, "from", from.String(), "to", to.String())
		},
	}

	return &breakerTransport{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	_, err := t.cb.Execute(func() (interface{}, error) {
		r, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode >= 500 {
			return r, &StatusError{Code: r.StatusCode}
		}
		return r, nil
	})

	if err != nil {
		// Let the caller see and close the 5xx body as usual.
		var se *StatusError
		if errors.As(err, &se) && resp != nil {
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}

// NewClient returns an http.Client with the given timeout whose transport is
// guarded by a circuit breaker named after the upstream.
func NewClient(name string, timeout time.Duration, cfg BreakerConfig) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(name, nil, cfg),
	}
}
