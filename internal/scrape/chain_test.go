package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Scrape_FirstSuccess(t *testing.T) {
	s1 := &mockScraper{name: "primary", supports: true, page: &Page{URL: "https://clinic.jp/a", Text: "本文", Source: "primary"}}
	s2 := &mockScraper{name: "fallback", supports: true}

	page, err := NewChain(nil, 0, s1, s2).Scrape(context.Background(), "https://clinic.jp/a")
	require.NoError(t, err)
	assert.Equal(t, "primary", page.Source)
	assert.Zero(t, s2.calls)
}

func TestChain_Scrape_FallbackOnError(t *testing.T) {
	s1 := &mockScraper{name: "primary", supports: true, err: errors.New("blocked")}
	s2 := &mockScraper{name: "fallback", supports: true, page: &Page{Source: "fallback"}}

	page, err := NewChain(nil, 0, s1, s2).Scrape(context.Background(), "https://clinic.jp/a")
	require.NoError(t, err)
	assert.Equal(t, "fallback", page.Source)
}

func TestChain_Scrape_SkipsUnsupported(t *testing.T) {
	s1 := &mockScraper{name: "primary", supports: false, page: &Page{Source: "primary"}}
	s2 := &mockScraper{name: "fallback", supports: true, page: &Page{Source: "fallback"}}

	page, err := NewChain(nil, 0, s1, s2).Scrape(context.Background(), "https://clinic.jp/a")
	require.NoError(t, err)
	assert.Equal(t, "fallback", page.Source)
	assert.Zero(t, s1.calls)
}

func TestChain_Scrape_AllFail(t *testing.T) {
	s1 := &mockScraper{name: "a", supports: true, err: errors.New("first")}
	s2 := &mockScraper{name: "b", supports: true, err: errors.New("second")}

	_, err := NewChain(nil, 0, s1, s2).Scrape(context.Background(), "https://clinic.jp/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all scrapers failed")
	assert.Contains(t, err.Error(), "second")
}

func TestChain_Scrape_NoScraper(t *testing.T) {
	_, err := NewChain(nil, 0).Scrape(context.Background(), "https://clinic.jp/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable scraper")
}

func TestChain_Scrape_Excluded(t *testing.T) {
	s1 := &mockScraper{name: "a", supports: true, page: &Page{}}
	_, err := NewChain(nil, 0, s1).Scrape(context.Background(), "https://clinic.jp/tag/implant/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excluded")
	assert.Zero(t, s1.calls)
}

func TestChain_Body_Truncates(t *testing.T) {
	s1 := &mockScraper{name: "a", supports: true, page: &Page{Text: "歯牙移植の症例報告"}}
	body, err := NewChain(nil, 4, s1).Body(context.Background(), "https://clinic.jp/a")
	require.NoError(t, err)
	assert.Equal(t, "歯牙移植", body)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "自家", Truncate("自家歯牙移植", 2))
}
