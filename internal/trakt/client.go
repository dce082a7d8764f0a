// Package trakt is the Trakt v2 API client: OAuth device authentication,
// rate-limited transport and the handful of sync endpoints this tool needs.
package trakt

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/types"
)

// Trakt API endpoints.
const (
	DefaultAPIURL = "https://api.trakt.tv"

	tokenFileName = "trakt_token.json"
)

// refreshMargin renews tokens this long before they actually expire.
const refreshMargin = 5 * time.Minute

// Token is the persisted OAuth token set.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
	CreatedAt    int64  `json:"created_at"`
}

// Client is an authenticated Trakt API client.
type Client struct {
	clientID     string
	clientSecret string
	tokenPath    string
	baseURL      string
	transport    *Transport

	token *Token
	now   func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API host. Used by tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// NewClient builds a client. tokenDir is where the OAuth token file lives.
// An existing token is loaded eagerly; a missing or unreadable one just
// leaves the client unauthenticated.
func NewClient(clientID, clientSecret, tokenDir string, transport *Transport, opts ...ClientOption) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, types.ErrAuthFailed{
			Reason: "client_id and client_secret are required; register an app at https://trakt.tv/oauth/applications",
		}
	}

	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenPath:    filepath.Join(tokenDir, tokenFileName),
		baseURL:      DefaultAPIURL,
		transport:    transport,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.loadToken()
	return c, nil
}

// IsAuthenticated reports whether a token is loaded.
func (c *Client) IsAuthenticated() bool {
	return c.token != nil && c.token.AccessToken != ""
}

func (c *Client) loadToken() {
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		logger.Warn("ignoring unreadable token file", "path", c.tokenPath, "error", err)
		return
	}
	c.token = &tok
	logger.Debug("loaded Trakt token", "path", c.tokenPath)
}

// saveToken writes the token atomically with owner-only permissions.
func (c *Client) saveToken() error {
	data, err := json.MarshalIndent(c.token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	dir := filepath.Dir(c.tokenPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.tokenPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// accessToken returns a usable access token, refreshing when close to expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if !c.IsAuthenticated() {
		return "", types.ErrNotAuthenticated{}
	}
	if c.now().Unix() >= c.token.ExpiresAt-int64(refreshMargin.Seconds()) {
		if err := c.RefreshToken(ctx); err != nil {
			return "", err
		}
	}
	return c.token.AccessToken, nil
}

func (c *Client) headers(ctx context.Context, auth bool) (http.Header, error) {
	h := http.Header{
		"Content-Type":      {"application/json"},
		"trakt-api-version": {"2"},
		"trakt-api-key":     {c.clientID},
	}
	if auth {
		tok, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		h.Set("Authorization", "Bearer "+tok)
	}
	return h, nil
}

// call performs one API request and decodes the JSON response into out when
// out is non-nil.
func (c *Client) call(ctx context.Context, method, endpoint string, payload, out any, auth bool) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	header, err := c.headers(ctx, auth)
	if err != nil {
		return err
	}

	respBody, err := c.transport.Do(ctx, method, c.baseURL+endpoint, header, body)
	if err != nil {
		return err
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
		}
	}
	return nil
}

// UserProfile fetches the authenticated user's profile.
func (c *Client) UserProfile(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if err := c.call(ctx, http.MethodGet, "/users/me", nil, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UserRatings fetches the user's ratings. mediaType is "shows" or "movies".
func (c *Client) UserRatings(ctx context.Context, mediaType string) ([]RatedItem, error) {
	var items []RatedItem
	if err := c.call(ctx, http.MethodGet, "/users/me/ratings/"+mediaType, nil, &items, true); err != nil {
		return nil, err
	}
	return items, nil
}

// UserWatched fetches the user's watched items. mediaType is "shows" or
// "movies".
func (c *Client) UserWatched(ctx context.Context, mediaType string) ([]WatchedItem, error) {
	var items []WatchedItem
	if err := c.call(ctx, http.MethodGet, "/users/me/watched/"+mediaType, nil, &items, true); err != nil {
		return nil, err
	}
	return items, nil
}

// SyncRatings submits one batch of ratings.
func (c *Client) SyncRatings(ctx context.Context, payload RatingsPayload) (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.call(ctx, http.MethodPost, "/sync/ratings", payload, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncHistory submits one batch of watch history.
func (c *Client) SyncHistory(ctx context.Context, payload HistoryPayload) (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.call(ctx, http.MethodPost, "/sync/history", payload, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}
