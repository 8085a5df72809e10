package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/resilience"
	"github.com/sells-group/autotrans-cli/pkg/jina"
)

// JinaAdapter wraps a Jina Reader client as a Scraper. Repeated failures
// open its circuit breaker so the chain stops paying for a dead upstream.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewJinaAdapter creates a JinaAdapter. Three consecutive failures open the
// circuit for a minute.
func NewJinaAdapter(client jina.Client) *JinaAdapter {
	return &JinaAdapter{
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
		}),
	}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	return resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*Page, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.New("jina: response needs fallback")
		}
		url := resp.Data.URL
		if url == "" {
			url = targetURL
		}
		return &Page{
			URL:    url,
			Title:  resp.Data.Title,
			Text:   strings.TrimSpace(resp.Data.Content),
			Source: "jina",
		}, nil
	})
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
}

// needsFallback reports whether a Jina response is empty or a challenge page.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil || (resp.Code != 0 && resp.Code != 200) {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	if len([]rune(content)) < 50 {
		return true
	}
	if len(content) < 1000 {
		lower := strings.ToLower(content)
		for _, sig := range challengeSignatures {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}
	return false
}
