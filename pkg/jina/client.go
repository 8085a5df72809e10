// Package jina provides a client for the Jina AI reader and search API.
package jina

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/resilience"
)

// Client defines the Jina AI operations.
type Client interface {
	// Read fetches a URL via Jina AI Reader and returns the markdown content.
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
	// Search performs a web search via Jina AI Search and returns results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// ReadResponse is the parsed Jina API response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from Jina.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	Usage   ReadUsage `json:"usage"`
}

// ReadUsage tracks token consumption.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the parsed Jina Search API response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	siteFilter string
	language   string
	count      int
}

// WithSiteFilter restricts search results to a specific domain.
func WithSiteFilter(domain string) SearchOption {
	return func(o *searchOpts) { o.siteFilter = domain }
}

// WithLanguage biases results toward a language ("ja", "en").
func WithLanguage(lang string) SearchOption {
	return func(o *searchOpts) { o.language = lang }
}

// WithCount caps the number of results returned.
func WithCount(n int) SearchOption {
	return func(o *searchOpts) { o.count = n }
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom reader base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithSearchBaseURL sets a custom search base URL.
func WithSearchBaseURL(u string) Option {
	return func(c *httpClient) { c.searchBaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	http          *http.Client
	retry         resilience.RetryConfig
}

// NewClient creates a new Jina AI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       "https://r.jina.ai",
		searchBaseURL: "https://s.jina.ai",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("jina", "request")
	}
	return c
}

type rawResponse struct {
	status int
	body   []byte
}

// do sends a GET with retries on transient failures. Non-retryable statuses
// are returned to the caller for interpretation.
func (c *httpClient) do(ctx context.Context, reqURL string, headers map[string]string) (rawResponse, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (rawResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return rawResponse{}, eris.Wrap(err, "jina: create request")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return rawResponse{}, eris.Wrap(err, "jina: request failed")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return rawResponse{}, eris.Wrap(err, "jina: read response body")
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return rawResponse{}, resilience.NewTransientError(
				eris.Errorf("jina: status %d: %s", resp.StatusCode, excerpt(body)), resp.StatusCode)
		}
		return rawResponse{status: resp.StatusCode, body: body}, nil
	})
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	raw, err := c.do(ctx, c.baseURL+"/"+targetURL, map[string]string{"X-Return-Format": "markdown"})
	if err != nil {
		return nil, err
	}
	if raw.status != http.StatusOK {
		return nil, eris.Errorf("jina: unexpected status %d: %s", raw.status, excerpt(raw.body))
	}

	var result ReadResponse
	if err := json.Unmarshal(raw.body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}
	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	reqURL := c.searchBaseURL + "/" + url.PathEscape(query)
	params := url.Values{}
	if so.siteFilter != "" {
		params.Set("site", so.siteFilter)
	}
	if so.language != "" {
		params.Set("hl", so.language)
	}
	if so.count > 0 {
		params.Set("num", strconv.Itoa(so.count))
	}
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	raw, err := c.do(ctx, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search")
	}

	// 422 means no results for the query.
	if raw.status == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: raw.status}, nil
	}
	if raw.status != http.StatusOK {
		return nil, eris.Errorf("jina: search unexpected status %d: %s", raw.status, excerpt(raw.body))
	}

	var result SearchResponse
	if err := json.Unmarshal(raw.body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}
	if so.count > 0 && len(result.Data) > so.count {
		result.Data = result.Data[:so.count]
	}
	return &result, nil
}

func excerpt(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
