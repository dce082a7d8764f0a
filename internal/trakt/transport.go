package trakt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/mydehq/anitrakt/internal/config"
	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/types"
)

// Backoff tuning for transient failures.
const (
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// Transport performs HTTP requests against the Trakt API with per-verb rate
// gating and retry on transient failures. Mutating requests (POST/PUT/DELETE)
// and reads go through separate limiters so a burst of reads never delays a
// write past its own ceiling. The limiters serialize admission, so the
// observed request rate stays within the ceilings even with concurrent
// callers.
type Transport struct {
	httpc      *http.Client
	postGate   *rate.Limiter
	getGate    *rate.Limiter
	maxRetries int

	// sleep is swappable so tests do not wait out real backoffs.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTransport builds a transport from API tuning config.
func NewTransport(httpc *http.Client, cfg config.APIConfig) *Transport {
	if httpc == nil {
		httpc = &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}
	}
	return &Transport{
		httpc:      httpc,
		postGate:   rate.NewLimiter(rate.Limit(cfg.PostRateLimit), 1),
		getGate:    rate.NewLimiter(rate.Limit(cfg.GetRateLimit), 1),
		maxRetries: cfg.MaxRetries,
		sleep:      sleepCtx,
	}
}

// Do executes one logical API call, retrying transient failures with
// exponential backoff. A 429 response honors the Retry-After header. Client
// errors other than 429 surface immediately.
func (t *Transport) Do(ctx context.Context, method, url string, header http.Header, body []byte) ([]byte, error) {
	gate := t.getGate
	if isMutating(method) {
		gate = t.postGate
	}

	var lastErr error
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffBase << (attempt - 1)
			if wait > backoffCap {
				wait = backoffCap
			}
			logger.Warn("retrying Trakt request", "method", method, "url", url,
				"attempt", attempt+1, "wait", wait)
			if err := t.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		if err := gate.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}

		resp, err := t.httpc.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = types.ErrAPIError{Service: "Trakt", StatusCode: resp.StatusCode, Message: "rate limited"}
			if attempt+1 >= t.maxRetries {
				// No attempt left to spend the Retry-After wait on.
				continue
			}
			wait := retryAfter(resp, backoffCap)
			logger.Warn("rate limited by Trakt", "wait", wait)
			if err := t.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			apiErr := types.ErrAPIError{
				Service:    "Trakt",
				StatusCode: resp.StatusCode,
				Message:    trimBody(respBody),
			}
			if !apiErr.Transient() {
				return nil, apiErr
			}
			lastErr = apiErr
			continue
		}

		return respBody, nil
	}

	return nil, lastErr
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func trimBody(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		s = s[:max] + "..."
	}
	if s == "" {
		s = "no response body"
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
