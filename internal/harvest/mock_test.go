package harvest

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/pkg/jina"
	"github.com/sells-group/autotrans-cli/pkg/pubmed"
	"github.com/sells-group/autotrans-cli/pkg/youtube"
)

// fakeFetcher serves canned bodies and records requested URLs.
type fakeFetcher struct {
	mu   sync.Mutex
	body []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, rawURL)
	return f.body, f.err
}

func (f *fakeFetcher) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.urls) == 0 {
		return ""
	}
	return f.urls[len(f.urls)-1]
}

type fakeJina struct {
	results []jina.SearchResult
	err     error
	calls   int
	queries []string
}

func (f *fakeJina) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	return nil, eris.New("not used")
}

func (f *fakeJina) Search(_ context.Context, query string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	f.calls++
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return &jina.SearchResponse{Code: 200, Data: f.results}, nil
}

type fakePubMed struct {
	ids      []string
	articles []pubmed.Article
	err      error
	searched []string
}

func (f *fakePubMed) Search(_ context.Context, term string, _ int) ([]string, error) {
	f.searched = append(f.searched, term)
	return f.ids, f.err
}

func (f *fakePubMed) Fetch(_ context.Context, pmids []string) ([]pubmed.Article, error) {
	if strings.Join(pmids, ",") == "" {
		return nil, nil
	}
	return f.articles, nil
}

func (f *fakePubMed) PMCID(_ context.Context, _ string) (string, error) { return "", nil }

func (f *fakePubMed) FullText(_ context.Context, _ string) (*pubmed.FullText, error) {
	return nil, eris.New("not used")
}

type fakeYouTube struct {
	videos []youtube.Video
	err    error
	req    youtube.SearchRequest
}

func (f *fakeYouTube) Search(_ context.Context, req youtube.SearchRequest) ([]youtube.Video, error) {
	f.req = req
	return f.videos, f.err
}
