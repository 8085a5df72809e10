// Package feed serves the newest stored documents per kind and language.
package feed

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/autotrans-cli/internal/model"
)

const (
	DefaultLimit = 5
	MaxLimit     = 20

	// maxPages bounds how far a partition is paged to replace items that
	// were dropped for a missing title or URL.
	maxPages = 3
)

// Querier reads one kind/language partition newest first.
type Querier interface {
	QueryByPartition(ctx context.Context, kind model.Kind, lang model.Language, limit int, cursor string) ([]model.StoredDocument, string, error)
}

// Item is one entry in a latest-documents response.
type Item struct {
	Headline    string         `json:"headline"`
	URL         string         `json:"url"`
	PublishedAt string         `json:"published_at"`
	Kind        model.Kind     `json:"kind"`
	Language    model.Language `json:"language"`
	Source      model.Source   `json:"source"`

	sortKey string
}

// Response is the latest-documents payload.
type Response struct {
	Kind      model.Kind     `json:"kind"`
	Lang      model.Language `json:"lang"`
	Count     int            `json:"count"`
	UpdatedAt time.Time      `json:"updated_at"`
	Items     []Item         `json:"items"`
}

// Service answers latest-documents queries.
type Service struct {
	store Querier
	now   func() time.Time
}

// New creates a Service backed by store.
func New(store Querier) *Service {
	return &Service{store: store, now: time.Now}
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Latest returns up to limit documents of kind in lang, newest first.
// model.LangAll merges every language, collapsing documents that share a
// canonical URL.
func (s *Service) Latest(ctx context.Context, kind model.Kind, lang model.Language, limit int) (*Response, error) {
	limit = ClampLimit(limit)

	var items []Item
	if lang == model.LangAll {
		langs := model.AllLanguages()
		parts := make([][]Item, len(langs))
		g, gctx := errgroup.WithContext(ctx)
		for i, l := range langs {
			g.Go(func() error {
				got, err := s.partition(gctx, kind, l, limit)
				parts[i] = got
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		items = merge(parts...)
	} else {
		got, err := s.partition(ctx, kind, lang, limit)
		if err != nil {
			return nil, err
		}
		items = got
	}

	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []Item{}
	}
	return &Response{
		Kind:      kind,
		Lang:      lang,
		Count:     len(items),
		UpdatedAt: s.now().UTC(),
		Items:     items,
	}, nil
}

func (s *Service) partition(ctx context.Context, kind model.Kind, lang model.Language, limit int) ([]Item, error) {
	var (
		out    []Item
		cursor string
	)
	for page := 0; page < maxPages && len(out) < limit; page++ {
		docs, next, err := s.store.QueryByPartition(ctx, kind, lang, limit, cursor)
		if err != nil {
			return nil, eris.Wrapf(err, "feed: query %s/%s", kind, lang)
		}
		for _, d := range docs {
			if it, ok := toItem(d); ok {
				out = append(out, it)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func toItem(d model.StoredDocument) (Item, bool) {
	headline := strings.TrimSpace(d.Headline())
	if headline == "" || strings.TrimSpace(d.URL) == "" {
		return Item{}, false
	}
	return Item{
		Headline:    headline,
		URL:         d.URL,
		PublishedAt: d.PublishedDate(),
		Kind:        d.Kind,
		Language:    d.Language,
		Source:      d.Source,
		sortKey:     d.PublishedAt,
	}, true
}

// merge combines per-language lists, keeps the newest item per canonical
// URL and sorts newest first.
func merge(parts ...[]Item) []Item {
	byURL := map[string]int{}
	var out []Item
	for _, part := range parts {
		for _, it := range part {
			key := model.CanonicalURL(it.URL)
			if i, ok := byURL[key]; ok {
				if it.sortKey > out[i].sortKey {
					out[i] = it
				}
				continue
			}
			byURL[key] = len(out)
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].sortKey > out[j].sortKey })
	return out
}
