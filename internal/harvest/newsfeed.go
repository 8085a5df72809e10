package harvest

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/autotrans-cli/internal/fetcher"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/scrape"
)

// newsLocale holds the Google News edition parameters per language.
var newsLocale = map[model.Language]struct{ hl, gl, ceid string }{
	model.LangJA: {"ja", "JP", "JP:ja"},
	model.LangEN: {"en", "US", "US:en"},
}

// NewsFeed searches the Google News RSS endpoint.
type NewsFeed struct {
	fetch   fetcher.Fetcher
	guard   *Guard
	baseURL string
	seeds   map[model.Language]string
	now     func() time.Time
}

// NewNewsFeed creates a NewsFeed. seeds holds the broad base expression per
// language that every planned query is OR-combined with.
func NewNewsFeed(f fetcher.Fetcher, baseURL string, seeds map[string]string, guard GuardConfig) *NewsFeed {
	if baseURL == "" {
		baseURL = "https://news.google.com/rss/search"
	}
	s := make(map[model.Language]string, len(seeds))
	for k, v := range seeds {
		if lang, err := model.ParseLanguage(k, false); err == nil {
			s[lang] = v
		}
	}
	return &NewsFeed{
		fetch:   f,
		guard:   NewGuard("news", guard),
		baseURL: baseURL,
		seeds:   s,
		now:     time.Now,
	}
}

// Name implements Harvester.
func (n *NewsFeed) Name() string { return "news" }

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
	Source      string `xml:"source"`
}

// Search implements Harvester.
func (n *NewsFeed) Search(ctx context.Context, query string, lang model.Language) []model.Candidate {
	return n.guard.Run(ctx, query, lang, func(ctx context.Context) ([]model.Candidate, error) {
		body, err := n.fetch.Get(ctx, n.FeedURL(query, lang))
		if err != nil {
			return nil, err
		}
		items, err := fetcher.DecodeElements[rssItem](body, "item")
		if err != nil {
			return nil, err
		}

		collected := n.now()
		out := make([]model.Candidate, 0, len(items))
		for _, it := range items {
			link := strings.TrimSpace(it.Link)
			title := strings.TrimSpace(it.Title)
			if link == "" || title == "" {
				continue
			}
			source := strings.TrimSpace(it.Source)
			out = append(out, model.Candidate{
				Source:      model.SourceGoogleNews,
				Title:       trimSourceSuffix(title, source),
				URL:         link,
				PublishedAt: model.NormalizePublishedAt(it.PubDate, collected),
				RawSummary:  htmlToText(it.Description),
				Author:      source,
				Language:    lang,
			})
		}
		return out, nil
	})
}

// FeedURL builds the search URL for query in lang's news edition.
func (n *NewsFeed) FeedURL(query string, lang model.Language) string {
	q := strings.TrimSpace(query)
	if seed := n.seeds[lang]; seed != "" {
		if q == "" {
			q = seed
		} else {
			q = "(" + seed + ") OR (\"" + strings.ReplaceAll(q, `"`, "") + "\")"
		}
	}
	loc, ok := newsLocale[lang]
	if !ok {
		loc = newsLocale[model.LangEN]
	}
	params := url.Values{
		"q":    {q},
		"hl":   {loc.hl},
		"gl":   {loc.gl},
		"ceid": {loc.ceid},
	}
	return n.baseURL + "?" + params.Encode()
}

// trimSourceSuffix drops the " - Publisher" suffix Google News appends to
// every headline.
func trimSourceSuffix(title, source string) string {
	if source == "" {
		return title
	}
	if t := strings.TrimSuffix(title, " - "+source); t != "" {
		return strings.TrimSpace(t)
	}
	return title
}

// htmlToText flattens an HTML snippet to plain text. Unparseable input is
// returned trimmed.
func htmlToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	_, text, err := scrape.ExtractText(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(text), " ")
}
