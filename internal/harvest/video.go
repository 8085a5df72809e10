package harvest

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/autotrans-cli/internal/fetcher"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/pkg/youtube"
)

// NewVideo returns the API-backed video harvester when a client is
// available and the keyless feed otherwise.
func NewVideo(client youtube.Client, f fetcher.Fetcher, feedURL string, maxResults int64, guard GuardConfig) Harvester {
	if client != nil {
		return NewYouTubeAPI(client, maxResults, guard)
	}
	return NewYouTubeFeed(f, feedURL, guard)
}

// YouTubeFeed reads the public search feed. It needs no key but carries only
// coarse metadata.
type YouTubeFeed struct {
	fetch   fetcher.Fetcher
	guard   *Guard
	feedURL string
	now     func() time.Time
}

// NewYouTubeFeed creates a YouTubeFeed.
func NewYouTubeFeed(f fetcher.Fetcher, feedURL string, guard GuardConfig) *YouTubeFeed {
	if feedURL == "" {
		feedURL = "https://www.youtube.com/feeds/videos.xml"
	}
	return &YouTubeFeed{fetch: f, guard: NewGuard("video", guard), feedURL: feedURL, now: time.Now}
}

// Name implements Harvester.
func (y *YouTubeFeed) Name() string { return "video" }

type atomEntry struct {
	Title     string `xml:"title"`
	VideoID   string `xml:"videoId"`
	Published string `xml:"published"`
	Link      struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Author struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Group struct {
		Description string `xml:"description"`
		Thumbnail   struct {
			URL string `xml:"url,attr"`
		} `xml:"thumbnail"`
	} `xml:"group"`
}

// Search implements Harvester.
func (y *YouTubeFeed) Search(ctx context.Context, query string, lang model.Language) []model.Candidate {
	return y.guard.Run(ctx, query, lang, func(ctx context.Context) ([]model.Candidate, error) {
		body, err := y.fetch.Get(ctx, y.feedURL+"?"+url.Values{"search_query": {query}}.Encode())
		if err != nil {
			return nil, err
		}
		entries, err := fetcher.DecodeElements[atomEntry](body, "entry")
		if err != nil {
			return nil, err
		}

		collected := y.now()
		out := make([]model.Candidate, 0, len(entries))
		for _, e := range entries {
			link := strings.TrimSpace(e.Link.Href)
			if link == "" && e.VideoID != "" {
				link = "https://www.youtube.com/watch?v=" + e.VideoID
			}
			title := strings.TrimSpace(e.Title)
			if link == "" || title == "" {
				continue
			}
			out = append(out, model.Candidate{
				Source:      model.SourceYouTubeRSS,
				Title:       title,
				URL:         link,
				PublishedAt: model.NormalizePublishedAt(e.Published, collected),
				RawSummary:  strings.TrimSpace(e.Group.Description),
				Author:      e.Author.Name,
				ImageURL:    e.Group.Thumbnail.URL,
				Language:    lang,
				ExternalID:  e.VideoID,
			})
		}
		return out, nil
	})
}

// YouTubeAPI searches the Data API v3, newest first.
type YouTubeAPI struct {
	client     youtube.Client
	guard      *Guard
	maxResults int64
	now        func() time.Time
}

// NewYouTubeAPI creates a YouTubeAPI harvester.
func NewYouTubeAPI(client youtube.Client, maxResults int64, guard GuardConfig) *YouTubeAPI {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &YouTubeAPI{client: client, guard: NewGuard("video", guard), maxResults: maxResults, now: time.Now}
}

// Name implements Harvester.
func (y *YouTubeAPI) Name() string { return "video" }

// Search implements Harvester.
func (y *YouTubeAPI) Search(ctx context.Context, query string, lang model.Language) []model.Candidate {
	return y.guard.Run(ctx, query, lang, func(ctx context.Context) ([]model.Candidate, error) {
		videos, err := y.client.Search(ctx, youtube.SearchRequest{
			Query:      query,
			Language:   string(lang),
			MaxResults: y.maxResults,
		})
		if err != nil {
			return nil, err
		}

		collected := y.now()
		out := make([]model.Candidate, 0, len(videos))
		for _, v := range videos {
			published := ""
			if !v.PublishedAt.IsZero() {
				published = v.PublishedAt.Format(model.TimeLayout)
			}
			out = append(out, model.Candidate{
				Source:      model.SourceYouTubeAPI,
				Title:       v.Title,
				URL:         v.URL(),
				PublishedAt: model.NormalizePublishedAt(published, collected),
				RawSummary:  v.Description,
				Author:      v.ChannelTitle,
				ImageURL:    v.ThumbnailURL,
				Language:    lang,
				ExternalID:  v.ID,
			})
		}
		return out, nil
	})
}
