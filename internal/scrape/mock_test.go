package scrape

import (
	"context"

	"github.com/sells-group/autotrans-cli/pkg/jina"
)

// mockScraper implements Scraper for testing.
type mockScraper struct {
	name     string
	supports bool
	page     *Page
	err      error
	calls    int
}

func (m *mockScraper) Name() string           { return m.name }
func (m *mockScraper) Supports(_ string) bool { return m.supports }
func (m *mockScraper) Scrape(_ context.Context, _ string) (*Page, error) {
	m.calls++
	return m.page, m.err
}

// fakeJina implements jina.Client with canned reader responses.
type fakeJina struct {
	read  *jina.ReadResponse
	err   error
	calls int
}

func (f *fakeJina) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	f.calls++
	return f.read, f.err
}

func (f *fakeJina) Search(_ context.Context, _ string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	return &jina.SearchResponse{}, nil
}
