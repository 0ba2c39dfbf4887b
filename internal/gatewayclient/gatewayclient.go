// Package gatewayclient is a small HTTP client for a running traqtune
// gateway, used by the terminal player. It authenticates the way the browser
// does: by presenting the session token as the traq_token cookie.
package gatewayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ayase-lab/traqtune/internal/models"
	"github.com/ayase-lab/traqtune/internal/shared"
)

// Client calls the gateway's JSON endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a gateway client. token may be empty for anonymous calls.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// get performs a GET with the session cookie attached and decodes JSON.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: "traq_token", Value: c.token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return shared.ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrUpstream, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Songs lists the gateway's songs.
func (c *Client) Songs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	if err := c.get(ctx, "/api/songs", &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// Me resolves the session's identity. Returns nil for anonymous sessions.
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var profile *models.Profile
	if err := c.get(ctx, "/api/me", &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// StreamURL returns the playback URL for a song.
func (c *Client) StreamURL(fileID string) string {
	return fmt.Sprintf("%s/api/stream/%s", c.baseURL, url.PathEscape(fileID))
}

// LoginURL returns the gateway login page, for hand-off to a browser.
func (c *Client) LoginURL() string {
	return c.baseURL + "/api/auth/login"
}
