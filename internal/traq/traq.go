// Package traq implements the client for the upstream traQ instance that is
// the system of record for identity and files.
//
// Endpoint shapes based on https://apis.trap.jp/ (traQ v3 API).
package traq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ayase-lab/traqtune/internal/models"
	"github.com/ayase-lab/traqtune/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	authorizePath = "/oauth2/authorize"
	tokenPath     = "/oauth2/token"

	// MaxPageSize bounds channel file listings; traQ rejects larger limits.
	MaxPageSize = 200

	jsonTimeout = 15 * time.Second
)

// Client talks to a traQ instance: OAuth2 authorization-code exchange plus
// the authenticated file endpoints the gateway proxies.
//
// The client holds no token state. Every call takes the bearer token of the
// session it acts for, so a single Client serves all gateway requests.
type Client struct {
	baseURL      string
	config       *oauth2.Config
	jsonClient   *http.Client // bounded timeout, JSON endpoints
	streamClient *http.Client // no wall-clock timeout, long audio relays
	limiter      *rate.Limiter
}

// NewClient creates a traQ client for the given instance and OAuth2
// credentials. clientSecret may be empty for a public client.
func NewClient(baseURL, clientID, clientSecret, redirectURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: upstream base URL", shared.ErrMissingArgument)
	}
	if clientID == "" {
		return nil, fmt.Errorf("%w: oauth client id", shared.ErrMissingArgument)
	}
	if redirectURL == "" {
		return nil, fmt.Errorf("%w: oauth redirect url", shared.ErrMissingArgument)
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  baseURL + authorizePath,
			TokenURL: baseURL + tokenPath,
		},
	}

	return &Client{
		baseURL:      baseURL,
		config:       config,
		jsonClient:   &http.Client{Timeout: jsonTimeout},
		streamClient: &http.Client{},
		limiter:      rate.NewLimiter(rate.Limit(10), 20),
	}, nil
}

// AuthCodeURL returns the provider authorize URL the browser is redirected
// to. state is the CSRF nonce verified on callback.
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.jsonClient)

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExchange, err)
	}
	return token, nil
}

// doRequest performs an authenticated JSON request against the traQ API.
func (c *Client) doRequest(ctx context.Context, token, method, endpoint string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

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

// Me retrieves the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (*models.Profile, error) {
	var profile models.Profile
	if err := c.doRequest(ctx, token, http.MethodGet, "/users/me", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListChannelFiles retrieves the files of a channel in upstream order.
//
// limit is clamped to [1, MaxPageSize].
func (c *Client) ListChannelFiles(ctx context.Context, token, channelID string, limit int) ([]models.File, error) {
	if channelID == "" {
		return nil, fmt.Errorf("%w: channel id", shared.ErrMissingArgument)
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	endpoint := fmt.Sprintf("/files?channelId=%s&limit=%d", url.QueryEscape(channelID), limit)

	var files []models.File
	if err := c.doRequest(ctx, token, http.MethodGet, endpoint, &files); err != nil {
		return nil, err
	}

	return files, nil
}

// FileStream is an in-flight file download. The body is unread; the caller
// relays and closes it. Non-2xx responses are returned as a FileStream too so
// the gateway can forward the upstream status verbatim.
type FileStream struct {
	StatusCode    int
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// DownloadFile requests a file's bytes.
//
// The request is bound to ctx, so cancelling it (client disconnect) closes
// the upstream connection instead of draining the rest of the stream.
func (c *Client) DownloadFile(ctx context.Context, token, fileID string) (*FileStream, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}

	endpoint := fmt.Sprintf("/files/%s", url.PathEscape(fileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}

	return &FileStream{
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}
