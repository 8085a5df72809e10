// Package scrape fetches the readable text of a candidate's landing page so
// the classifier can judge more than a feed snippet.
package scrape

import "context"

// Page is the extracted text of one URL.
type Page struct {
	URL    string
	Title  string
	Text   string
	Source string // "local_http" or "jina"
}

// Scraper fetches a single URL and returns its text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
	Name() string
	Supports(url string) bool
}
