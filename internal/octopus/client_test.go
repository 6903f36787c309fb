package octopus

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agiledash/internal/model"
)

// MockRoundTripper is a mock implementation of http.RoundTripper.
type MockRoundTripper struct {
	Handler func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Handler(req)
}

func jsonResponse(code int, body string) *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     h,
	}
}

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func TestTariffCodes(t *testing.T) {
	assert.Equal(t, "E-1R-AGILE-24-10-01-C", ElectricityTariffCode("AGILE-24-10-01", "c"))
	assert.Equal(t, "G-1R-SILVER-25-09-02-C", GasTariffCode("SILVER-25-09-02", "C"))
}

func TestElectricityRatesPagesAndSorts(t *testing.T) {
	loc := london(t)
	var pages []string

	mock := &MockRoundTripper{Handler: func(req *http.Request) (*http.Response, error) {
		require.True(t, strings.HasSuffix(req.URL.Path,
			"/products/AGILE-24-10-01/electricity-tariffs/E-1R-AGILE-24-10-01-C/standard-unit-rates/"),
			"unexpected path %s", req.URL.Path)
		q := req.URL.Query()
		periodFrom, err := time.Parse(time.RFC3339, q.Get("period_from"))
		require.NoError(t, err)
		assert.True(t, periodFrom.Equal(time.Date(2025, 6, 9, 23, 0, 0, 0, time.UTC)))
		pages = append(pages, q.Get("page"))

		// The API returns newest first.
		if q.Get("page") == "2" {
			return jsonResponse(http.StatusOK, `{
				"count": 3, "next": null, "previous": "https://api.octopus.energy/x?page=1",
				"results": [
					{"value_exc_vat": 10.0, "value_inc_vat": 10.5, "valid_from": "2025-06-09T23:00:00Z", "valid_to": "2025-06-09T23:30:00Z"}
				]}`), nil
		}
		return jsonResponse(http.StatusOK, `{
			"count": 3, "next": "https://api.octopus.energy/x?page=2", "previous": null,
			"results": [
				{"value_exc_vat": 20.0, "value_inc_vat": 21.0, "valid_from": "2025-06-10T00:00:00Z", "valid_to": "2025-06-10T00:30:00Z"},
				{"value_exc_vat": -2.0, "value_inc_vat": -2.1, "valid_from": "2025-06-09T23:30:00Z", "valid_to": "2025-06-10T00:00:00Z"}
			]}`), nil
	}}

	c := NewClient(mock, time.Second, loc)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, loc)
	rates, err := c.ElectricityRates(context.Background(), "AGILE-24-10-01", "C", from, from.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, rates, 3)
	assert.Equal(t, from, rates[0].ValidFrom)
	assert.Equal(t, from.Add(30*time.Minute), rates[0].ValidTo)
	assert.Equal(t, 10.5, rates[0].PricePence)
	assert.Equal(t, -2.1, rates[1].PricePence)
	assert.Equal(t, time.Date(2025, 6, 10, 1, 0, 0, 0, loc), rates[2].ValidFrom)
	assert.Equal(t, loc, rates[2].ValidFrom.Location())
}

func TestGasRates(t *testing.T) {
	loc := london(t)
	mock := &MockRoundTripper{Handler: func(req *http.Request) (*http.Response, error) {
		require.Contains(t, req.URL.Path, "/gas-tariffs/G-1R-SILVER-25-09-02-C/standard-unit-rates/")
		return jsonResponse(http.StatusOK, `{
			"count": 1, "next": null, "previous": null,
			"results": [
				{"value_exc_vat": 5.6, "value_inc_vat": 5.88, "valid_from": "2025-06-09T23:00:00Z", "valid_to": "2025-06-10T23:00:00Z"}
			]}`), nil
	}}

	c := NewClient(mock, time.Second, loc)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, loc)
	rates, err := c.GasRates(context.Background(), "SILVER-25-09-02", "C", from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, 5.88, rates[0].PricePence)
	assert.Equal(t, from, rates[0].ValidFrom)
	assert.Equal(t, from.AddDate(0, 0, 1), rates[0].ValidTo)
}

func TestEmptyAndNotFoundAreUnavailable(t *testing.T) {
	loc := london(t)
	from := time.Date(2025, 6, 11, 0, 0, 0, 0, loc)

	empty := &MockRoundTripper{Handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"count": 0, "next": null, "previous": null, "results": []}`), nil
	}}
	_, err := NewClient(empty, time.Second, loc).ElectricityRates(context.Background(), "AGILE-24-10-01", "C", from, from.AddDate(0, 0, 1))
	require.ErrorIs(t, err, model.ErrDataUnavailable)

	missing := &MockRoundTripper{Handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"detail": "Not found."}`), nil
	}}
	_, err = NewClient(missing, time.Second, loc).ElectricityRates(context.Background(), "AGILE-24-10-01", "C", from, from.AddDate(0, 0, 1))
	require.ErrorIs(t, err, model.ErrDataUnavailable)
}

func TestServerErrorIsTransient(t *testing.T) {
	loc := london(t)
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, loc)

	broken := &MockRoundTripper{Handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, `{"detail": "down"}`), nil
	}}
	_, err := NewClient(broken, time.Second, loc).ElectricityRates(context.Background(), "AGILE-24-10-01", "C", from, from.AddDate(0, 0, 1))
	require.ErrorIs(t, err, model.ErrTransientFetch)
	assert.NotErrorIs(t, err, model.ErrDataUnavailable)
}
