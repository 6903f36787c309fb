// Package homeassistant polls a Home Assistant instance for an alert flag and
// an optional message shown in the dashboard header.
package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agiledash/internal/model"
)

// DefaultTimeout matches the HA REST API guidance for LAN polling.
const DefaultTimeout = 5 * time.Second

// EntityState is the subset of /api/states/<entity_id> we read.
type EntityState struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// Client talks to the Home Assistant REST API with a long-lived token.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates a Client. httpClient should carry its own timeout.
func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// State fetches the current state of one entity.
func (c *Client) State(ctx context.Context, entityID string) (*EntityState, error) {
	endpoint := c.baseURL + "/api/states/" + url.PathEscape(entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("home assistant %s: %w: %v", entityID, model.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("home assistant %s: unexpected status %s", entityID, resp.Status)
	}

	var st EntityState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("home assistant %s: decode: %w", entityID, err)
	}
	return &st, nil
}
