// Package weather fetches current conditions from the Open-Meteo API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	appLog "agiledash/internal/log"
	"agiledash/internal/model"
)

const DefaultBaseURL = "https://api.open-meteo.com/v1"

// Client queries Open-Meteo's forecast endpoint for current values only.
type Client struct {
	http    *http.Client
	baseURL string
	now     func() time.Time
}

type currentResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   struct {
		Time          string   `json:"time"`
		Temperature2M *float64 `json:"temperature_2m"`
		WeatherCode   *int     `json:"weather_code"`
	} `json:"current"`
}

// NewClient creates a Client. httpClient should carry its own timeout.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: baseURL, now: time.Now}
}

// Current returns the temperature and WMO weather code at lat/lon.
// Failures wrap model.ErrTransientFetch.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*model.WeatherSnapshot, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,weather_code")
	endpoint := c.baseURL + "/forecast?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo: %w: %v", model.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("open-meteo: %w: %s", model.ErrTransientFetch, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("open-meteo: %w: %v", model.ErrTransientFetch, err)
	}

	var parsed currentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("open-meteo: failed to parse response: %w", err)
	}
	if parsed.Current.Temperature2M == nil || parsed.Current.WeatherCode == nil {
		return nil, errors.New("open-meteo: response has no current values")
	}

	snap := &model.WeatherSnapshot{
		TemperatureC:  *parsed.Current.Temperature2M,
		ConditionCode: *parsed.Current.WeatherCode,
		FetchedAt:     c.now(),
	}
	appLog.Debug("weather fetched", "temp_c", snap.TemperatureC, "code", snap.ConditionCode,
		"desc", Description(snap.ConditionCode))
	return snap, nil
}
