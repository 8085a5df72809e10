package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/autotrans-cli/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return New(Options{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		DefaultRate: rate.Inf,
		HostRates:   map[string]rate.Limit{},
		Retry:       resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	})
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("hello world")) //nolint:errcheck
	}))
	defer srv.Close()

	body, err := newTestFetcher().Get(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	body, err := newTestFetcher().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_NotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_RateLimitedSlowsDown(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f := New(Options{
		DefaultRate: 1000,
		HostRates:   map[string]rate.Limit{},
		Retry:       resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	})
	_, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	var lim *AdaptiveLimiter
	for _, l := range f.limiters {
		lim = l
	}
	require.NotNil(t, lim)
	assert.Less(t, float64(lim.Limit()), 1000.0)
}

func TestGet_BadURL(t *testing.T) {
	_, err := newTestFetcher().Get(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestGet_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("0123456789")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestFetcher()
	f.opts.MaxBytes = 4
	body, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(body))
}

func TestAdaptiveLimiter(t *testing.T) {
	a := NewAdaptiveLimiter(8, 1)
	a.OnRateLimit()
	assert.InDelta(t, 4.0, float64(a.Limit()), 1e-9)
	for range 10 {
		a.OnRateLimit()
	}
	assert.InDelta(t, 1.0, float64(a.Limit()), 1e-9)
	for range 20 {
		a.OnSuccess()
	}
	assert.InDelta(t, 8.0, float64(a.Limit()), 1e-9)
}

func TestNew_Defaults(t *testing.T) {
	f := New(Options{})
	assert.Equal(t, "autotrans-cli/1.0", f.opts.UserAgent)
	assert.Equal(t, rate.Limit(3), f.opts.HostRates["eutils.ncbi.nlm.nih.gov"])
	assert.Equal(t, 3, f.opts.Retry.MaxAttempts)
}
