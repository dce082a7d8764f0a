package trakt

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/types"
)

// DeviceCode is the server's answer to a device authorization request. The
// user visits VerificationURL and enters UserCode while we poll with
// DeviceCode.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// StartDeviceAuth begins the OAuth device flow.
func (c *Client) StartDeviceAuth(ctx context.Context) (*DeviceCode, error) {
	var dc DeviceCode
	payload := map[string]string{"client_id": c.clientID}
	if err := c.call(ctx, http.MethodPost, "/oauth/device/code", payload, &dc, false); err != nil {
		return nil, types.ErrAuthFailed{Reason: "failed to get device code: " + err.Error()}
	}
	if dc.Interval <= 0 {
		dc.Interval = 5
	}
	if dc.ExpiresIn <= 0 {
		dc.ExpiresIn = 600
	}
	return &dc, nil
}

// PollToken polls for the access token until the user authorizes the device,
// the code expires, or the flow is denied. The poll interval doubles when the
// server asks us to slow down.
func (c *Client) PollToken(ctx context.Context, dc *DeviceCode) error {
	interval := time.Duration(dc.Interval) * time.Second
	deadline := c.now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	payload := map[string]string{
		"code":          dc.DeviceCode,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}

	for c.now().Before(deadline) {
		if err := c.transport.sleep(ctx, interval); err != nil {
			return err
		}

		var tok tokenResponse
		err := c.call(ctx, http.MethodPost, "/oauth/device/token", payload, &tok, false)
		if err == nil {
			c.storeToken(tok)
			if saveErr := c.saveToken(); saveErr != nil {
				return saveErr
			}
			logger.Info("Trakt authentication complete")
			return nil
		}

		apiErr, ok := err.(types.ErrAPIError)
		if !ok {
			return err
		}
		switch apiErr.StatusCode {
		case http.StatusBadRequest:
			// User has not authorized yet, keep polling.
		case http.StatusNotFound:
			return types.ErrAuthFailed{Reason: "invalid device code"}
		case http.StatusConflict:
			return types.ErrAuthFailed{Reason: "code already used"}
		case http.StatusGone:
			return types.ErrAuthFailed{Reason: "code expired"}
		case http.StatusTeapot:
			return types.ErrAuthFailed{Reason: "access denied by user"}
		case http.StatusTooManyRequests:
			interval *= 2
			if interval > 30*time.Second {
				interval = 30 * time.Second
			}
		default:
			return types.ErrAuthFailed{Reason: apiErr.Error()}
		}
	}

	return types.ErrAuthFailed{Reason: "authentication timed out"}
}

// RefreshToken exchanges the refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context) error {
	if c.token == nil || c.token.RefreshToken == "" {
		return types.ErrNotAuthenticated{}
	}

	payload := map[string]string{
		"refresh_token": c.token.RefreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
		"grant_type":    "refresh_token",
	}

	var tok tokenResponse
	if err := c.call(ctx, http.MethodPost, "/oauth/token", payload, &tok, false); err != nil {
		return types.ErrAuthFailed{Reason: "token refresh failed: " + err.Error()}
	}

	c.storeToken(tok)
	if err := c.saveToken(); err != nil {
		return err
	}
	logger.Debug("refreshed Trakt access token")
	return nil
}

// RevokeToken invalidates the current token and removes the token file.
// Upstream revocation failures are logged but do not block local cleanup.
func (c *Client) RevokeToken(ctx context.Context) error {
	if !c.IsAuthenticated() {
		return nil
	}

	payload := map[string]string{
		"token":         c.token.AccessToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	if err := c.call(ctx, http.MethodPost, "/oauth/revoke", payload, nil, false); err != nil {
		logger.Warn("failed to revoke token upstream", "error", err)
	}

	c.token = nil
	if err := os.Remove(c.tokenPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	logger.Info("Trakt token revoked")
	return nil
}

func (c *Client) storeToken(tok tokenResponse) {
	now := c.now().Unix()
	c.token = &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    now + tok.ExpiresIn,
		CreatedAt:    now,
	}
}
