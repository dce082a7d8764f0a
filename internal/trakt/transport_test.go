package trakt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mydehq/anitrakt/internal/config"
	"github.com/mydehq/anitrakt/internal/types"
)

// testTransport builds a transport with generous rate limits and recorded
// instead of real sleeps.
func testTransport(t *testing.T, httpc *http.Client, sleeps *[]time.Duration) *Transport {
	t.Helper()
	tr := NewTransport(httpc, config.APIConfig{
		Timeout:       5,
		PostRateLimit: 1000,
		GetRateLimit:  1000,
		MaxRetries:    3,
	})
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
	return tr
}

func TestDoRetriesTransientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var sleeps []time.Duration
	tr := testTransport(t, srv.Client(), &sleeps)

	body, err := tr.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d; want 3", attempts)
	}
	// Exponential backoff: 1s then 2s.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeps) != len(want) || sleeps[0] != want[0] || sleeps[1] != want[1] {
		t.Errorf("sleeps = %v; want %v", sleeps, want)
	}
}

func TestDoNonTransientFailsImmediately(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid token"))
	}))
	defer srv.Close()

	tr := testTransport(t, srv.Client(), nil)

	_, err := tr.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(types.ErrAPIError)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("error = %v; want 401 API error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d; want 1 (no retry)", attempts)
	}
}

func TestDoHonorsRetryAfter(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	var sleeps []time.Duration
	tr := testTransport(t, srv.Client(), &sleeps)

	if _, err := tr.Do(context.Background(), http.MethodGet, srv.URL, nil, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	found := false
	for _, d := range sleeps {
		if d == 7*time.Second {
			found = true
		}
	}
	if !found {
		t.Errorf("Retry-After wait missing from sleeps %v", sleeps)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tr := testTransport(t, srv.Client(), nil)

	_, err := tr.Do(context.Background(), http.MethodPost, srv.URL, nil, []byte(`{}`))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d; want 3", attempts)
	}
}

func TestDoContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewTransport(srv.Client(), config.APIConfig{
		Timeout: 5, PostRateLimit: 1000, GetRateLimit: 1000, MaxRetries: 3,
	})
	ctx, cancel := context.WithCancel(context.Background())
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := tr.Do(ctx, http.MethodGet, srv.URL, nil, nil); err == nil {
		t.Fatal("expected context error")
	}
}

func TestIsMutating(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{http.MethodGet, false},
		{http.MethodHead, false},
		{http.MethodPost, true},
		{http.MethodPut, true},
		{http.MethodDelete, true},
	}
	for _, tt := range tests {
		if got := isMutating(tt.method); got != tt.want {
			t.Errorf("isMutating(%s) = %v; want %v", tt.method, got, tt.want)
		}
	}
}

func TestDoNoSleepWhenNoRetryLeft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	tr := testTransport(t, srv.Client(), &sleeps)

	_, err := tr.Do(context.Background(), http.MethodPost, srv.URL, nil, []byte(`{}`))
	apiErr, ok := err.(types.ErrAPIError)
	if !ok || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Do() error = %v; want 429 API error", err)
	}
	// Retry-After then backoff for each retried attempt. After the last
	// attempt there is nothing to retry, so no closing Retry-After wait.
	want := []time.Duration{7 * time.Second, time.Second, 7 * time.Second, 2 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v; want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleeps[%d] = %v; want %v", i, sleeps[i], want[i])
		}
	}
}

func TestDoPacesMutatingRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := NewTransport(srv.Client(), config.APIConfig{
		Timeout: 5, PostRateLimit: 20, GetRateLimit: 20, MaxRetries: 1,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := tr.Do(context.Background(), http.MethodPost, srv.URL, nil, []byte(`{}`)); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}
	// Burst of one: the second and third calls each wait a full 50ms slot.
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("3 posts at 20/s took %v; want >= 100ms", elapsed)
	}
}

func TestDoReadGateIndependentOfWriteGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// A post rate this low would stall a second mutating call for nearly a
	// minute. Reads must not queue behind it.
	tr := NewTransport(srv.Client(), config.APIConfig{
		Timeout: 5, PostRateLimit: 0.02, GetRateLimit: 40, MaxRetries: 1,
	})

	if _, err := tr.Do(context.Background(), http.MethodPost, srv.URL, nil, []byte(`{}`)); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	start := time.Now()
	for i := 0; i < 4; i++ {
		if _, err := tr.Do(context.Background(), http.MethodGet, srv.URL, nil, nil); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 75*time.Millisecond {
		t.Errorf("4 gets at 40/s took %v; want >= 75ms", elapsed)
	}
	if elapsed > 10*time.Second {
		t.Errorf("gets took %v; they must not share the mutating gate", elapsed)
	}
}
