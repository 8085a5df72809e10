// Package youtube searches videos through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// Client defines the video search operation.
type Client interface {
	Search(ctx context.Context, req SearchRequest) ([]Video, error)
}

// SearchRequest describes one search call.
type SearchRequest struct {
	Query      string
	Language   string
	MaxResults int64
}

// Video is one search hit.
type Video struct {
	ID           string
	Title        string
	Description  string
	ChannelTitle string
	ThumbnailURL string
	PublishedAt  time.Time
}

// URL is the watch page for the video.
func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

type apiClient struct {
	svc *yt.Service
}

// NewClient creates a client authenticated with an API key. Extra options
// (an endpoint override in tests) are passed through to the service.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: new service")
	}
	return &apiClient{svc: svc}, nil
}

func (c *apiClient) Search(ctx context.Context, req SearchRequest) ([]Video, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = 10
	}
	call := c.svc.Search.List([]string{"snippet"}).
		Q(req.Query).
		Type("video").
		Order("date").
		MaxResults(req.MaxResults)
	if req.Language != "" {
		call = call.RelevanceLanguage(req.Language)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, "youtube: search")
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		v := Video{
			ID:           item.Id.VideoId,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelTitle: item.Snippet.ChannelTitle,
		}
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			v.PublishedAt = t.UTC()
		}
		if th := item.Snippet.Thumbnails; th != nil {
			switch {
			case th.High != nil:
				v.ThumbnailURL = th.High.Url
			case th.Default != nil:
				v.ThumbnailURL = th.Default.Url
			}
		}
		videos = append(videos, v)
	}
	return videos, nil
}

// IsQuotaExceeded reports whether err is the API's daily quota error.
func IsQuotaExceeded(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusForbidden {
		return false
	}
	for _, e := range gerr.Errors {
		if e.Reason == "quotaExceeded" || e.Reason == "dailyLimitExceeded" {
			return true
		}
	}
	return false
}
