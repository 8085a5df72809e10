package harvest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/scrape"
	"github.com/sells-group/autotrans-cli/pkg/jina"
)

// Quota is a hard per-run ceiling on paid web-search calls. It is safe for
// concurrent use.
type Quota struct {
	mu      sync.Mutex
	ceiling int
	used    int
}

// NewQuota creates a quota allowing ceiling calls. A ceiling of zero
// disables the source entirely.
func NewQuota(ceiling int) *Quota {
	if ceiling < 0 {
		ceiling = 0
	}
	return &Quota{ceiling: ceiling}
}

// TryAcquire consumes one call, reporting false once the ceiling is reached.
func (q *Quota) TryAcquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used >= q.ceiling {
		return false
	}
	q.used++
	return true
}

// Used returns the number of calls consumed.
func (q *Quota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Remaining returns the calls left before the ceiling.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ceiling - q.used
}

// WebSearch searches the open web through Jina search under a Quota.
type WebSearch struct {
	client  jina.Client
	quota   *Quota
	guard   *Guard
	results int
	now     func() time.Time

	warnOnce sync.Once
}

// NewWebSearch creates a WebSearch harvester.
func NewWebSearch(client jina.Client, quota *Quota, results int, guard GuardConfig) *WebSearch {
	if results <= 0 {
		results = 10
	}
	return &WebSearch{
		client:  client,
		quota:   quota,
		guard:   NewGuard("web", guard),
		results: results,
		now:     time.Now,
	}
}

// Name implements Harvester.
func (w *WebSearch) Name() string { return "web" }

// Quota returns the quota the harvester draws from.
func (w *WebSearch) Quota() *Quota { return w.quota }

// Search implements Harvester. Once the quota is spent it returns nothing
// without calling out.
func (w *WebSearch) Search(ctx context.Context, query string, lang model.Language) []model.Candidate {
	if !w.quota.TryAcquire() {
		w.warnOnce.Do(func() {
			zap.L().Info("harvest: web search quota exhausted, skipping for the rest of the run",
				zap.Int("used", w.quota.Used()),
			)
		})
		return nil
	}

	return w.guard.Run(ctx, query, lang, func(ctx context.Context) ([]model.Candidate, error) {
		resp, err := w.client.Search(ctx, query, jina.WithLanguage(string(lang)), jina.WithCount(w.results))
		if err != nil {
			return nil, err
		}

		collected := w.now()
		out := make([]model.Candidate, 0, len(resp.Data))
		for _, r := range resp.Data {
			if r.URL == "" || r.Title == "" {
				continue
			}
			summary := r.Description
			if summary == "" {
				summary = r.Content
			}
			out = append(out, model.Candidate{
				Source:      model.SourceWebSearch,
				Title:       r.Title,
				URL:         r.URL,
				PublishedAt: model.NormalizePublishedAt(r.Date, collected),
				RawSummary:  scrape.Truncate(summary, 1000),
				Language:    lang,
			})
		}
		return out, nil
	})
}
