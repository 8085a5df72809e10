package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	matcher  *PathMatcher
	scrapers []Scraper
	maxChars int
}

// NewChain creates a Chain. Text returned by Body is cut to maxChars runes
// when maxChars is positive.
func NewChain(matcher *PathMatcher, maxChars int, scrapers ...Scraper) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{matcher: matcher, scrapers: scrapers, maxChars: maxChars}
}

// Scrape tries each scraper in order for a single URL.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	if c.matcher.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: url excluded: %s", targetURL)
	}

	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		page, err := s.Scrape(ctx, targetURL)
		if err == nil && page != nil {
			return page, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}

// Body returns the page text, truncated.
func (c *Chain) Body(ctx context.Context, targetURL string) (string, error) {
	page, err := c.Scrape(ctx, targetURL)
	if err != nil {
		return "", err
	}
	return Truncate(page.Text, c.maxChars), nil
}

// Truncate cuts s to at most n runes. n <= 0 disables truncation.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
