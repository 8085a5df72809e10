// Package fetcher performs rate-limited, retried HTTP GETs against the public
// sources the harvesters and the full-text indexer read from.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/autotrans-cli/internal/resilience"
)

// Fetcher downloads a URL and returns its body.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Options configures an HTTPFetcher.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBytes    int64
	DefaultRate rate.Limit
	HostRates   map[string]rate.Limit
	Retry       resilience.RetryConfig
}

// DefaultHostRates returns the per-host request rates honored by default.
// NCBI allows three requests per second without an API key.
func DefaultHostRates() map[string]rate.Limit {
	return map[string]rate.Limit{
		"news.google.com":         1,
		"eutils.ncbi.nlm.nih.gov": 3,
		"www.ncbi.nlm.nih.gov":    3,
		"pmc.ncbi.nlm.nih.gov":    3,
		"www.youtube.com":         1,
	}
}

// HTTPFetcher implements Fetcher using net/http with one adaptive limiter
// per host.
type HTTPFetcher struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// New creates an HTTPFetcher, filling unset options with defaults.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "autotrans-cli/1.0"
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = 8 << 20
	}
	if opts.DefaultRate == 0 {
		opts.DefaultRate = 2
	}
	if opts.HostRates == nil {
		opts.HostRates = DefaultHostRates()
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// Get fetches rawURL. 429 and 5xx responses are retried with backoff; any
// other non-2xx status is returned as an error.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	lim := f.limiterFor(u.Host)

	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("fetcher", u.Host)
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: get %s", u.Host)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode == http.StatusTooManyRequests {
			lim.OnRateLimit()
		}
		if err := resilience.CheckStatus(resp, "fetcher"); err != nil {
			return nil, err
		}
		lim.OnSuccess()

		body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes))
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: read body")
		}
		return body, nil
	})
}

func (f *HTTPFetcher) limiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	r, ok := f.opts.HostRates[host]
	if !ok {
		r = f.opts.DefaultRate
	}
	lim := NewAdaptiveLimiter(r, 1)
	f.limiters[host] = lim
	return lim
}

// AdaptiveLimiter wraps a rate.Limiter that slows down on 429 responses and
// recovers gradually on success, never exceeding its initial rate.
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	min     rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at initial events per second.
func NewAdaptiveLimiter(initial rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initial, burst),
		initial: initial,
		min:     initial / 8,
		current: initial,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%, capped at the initial rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = min(a.current*1.2, a.initial)
	a.limiter.SetLimit(a.current)
}

// OnRateLimit halves the rate, down to one eighth of the initial rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = max(a.current*0.5, a.min)
	a.limiter.SetLimit(a.current)
	zap.L().Warn("fetcher: reducing rate after 429", zap.Float64("rate", float64(a.current)))
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
