package httpx

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper is a mock implementation of http.RoundTripper.
type MockRoundTripper struct {
	Handler func(req *http.Request) (*http.Response, error)
	calls   int
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.calls++
	return m.Handler(req)
}

func respond(code int) (*http.Response, error) {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(bytes.NewReader([]byte("{}"))),
		Header:     make(http.Header),
	}, nil
}

func get(t *testing.T, rt http.RoundTripper) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://example.invalid/x", nil)
	require.NoError(t, err)
	return rt.RoundTrip(req)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	mock := &MockRoundTripper{Handler: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	rt := NewTransport("test", mock, BreakerConfig{Failures: 3, OpenFor: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := get(t, rt)
		require.Error(t, err)
	}
	_, err := get(t, rt)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, mock.calls, "open breaker must not reach the upstream")
}

func TestServerErrorsPassThroughButCount(t *testing.T) {
	mock := &MockRoundTripper{Handler: func(*http.Request) (*http.Response, error) {
		return respond(http.StatusBadGateway)
	}}
	rt := NewTransport("test", mock, BreakerConfig{Failures: 2, OpenFor: time.Hour})

	resp, err := get(t, rt)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()

	resp, err = get(t, rt)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = get(t, rt)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestNotFoundDoesNotTrip(t *testing.T) {
	mock := &MockRoundTripper{Handler: func(*http.Request) (*http.Response, error) {
		return respond(http.StatusNotFound)
	}}
	rt := NewTransport("test", mock, BreakerConfig{Failures: 1, OpenFor: time.Hour})

	for i := 0; i < 5; i++ {
		resp, err := get(t, rt)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 5, mock.calls)
}
