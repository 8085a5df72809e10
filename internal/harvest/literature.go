package harvest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/pkg/pubmed"
)

// Literature searches PubMed. Records are English, so only English queries
// are sent.
type Literature struct {
	client  pubmed.Client
	guard   *Guard
	results int
	now     func() time.Time
}

// NewLiterature creates a Literature harvester.
func NewLiterature(client pubmed.Client, results int, guard GuardConfig) *Literature {
	if results <= 0 {
		results = 10
	}
	return &Literature{
		client:  client,
		guard:   NewGuard("pubmed", guard),
		results: results,
		now:     time.Now,
	}
}

// Name implements Harvester.
func (l *Literature) Name() string { return "pubmed" }

// Search implements Harvester: esearch for PMIDs, then efetch the records.
func (l *Literature) Search(ctx context.Context, query string, lang model.Language) []model.Candidate {
	if lang != model.LangEN {
		zap.L().Debug("harvest: pubmed skipped for non-English query", zap.String("lang", string(lang)))
		return nil
	}

	return l.guard.Run(ctx, query, lang, func(ctx context.Context) ([]model.Candidate, error) {
		ids, err := l.client.Search(ctx, query, l.results)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}
		articles, err := l.client.Fetch(ctx, ids)
		if err != nil {
			return nil, err
		}

		collected := l.now()
		out := make([]model.Candidate, 0, len(articles))
		for _, a := range articles {
			if a.Title == "" {
				continue
			}
			published := ""
			if !a.PublishedAt.IsZero() {
				published = a.PublishedAt.UTC().Format(model.TimeLayout)
			}
			out = append(out, model.Candidate{
				Source:      model.SourcePubMed,
				Title:       a.Title,
				URL:         a.URL(),
				PublishedAt: model.NormalizePublishedAt(published, collected),
				RawSummary:  a.Abstract,
				Author:      a.Journal,
				Language:    model.LangEN,
				ExternalID:  a.PMID,
			})
		}
		return out, nil
	})
}
