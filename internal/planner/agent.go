package planner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/classify"
	"github.com/sells-group/autotrans-cli/internal/cost"
	"github.com/sells-group/autotrans-cli/internal/harvest"
	"github.com/sells-group/autotrans-cli/internal/metrics"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/scrape"
)

// DocumentStore is the part of the document store the agent writes to.
type DocumentStore interface {
	PutIfAbsent(ctx context.Context, doc model.StoredDocument) (bool, error)
	KnownIDs(ctx context.Context) (map[string]struct{}, error)
}

// Config bounds a run.
type Config struct {
	Languages           []model.Language
	MaxIterations       int
	QueriesPerIteration int
	FallbackQueries     map[model.Language][]string
}

// Agent runs the plan → harvest → filter → persist loop.
type Agent struct {
	cfg        Config
	planner    Planner
	harvesters []harvest.Harvester
	classifier classify.Classifier
	store      DocumentStore
	excluded   *scrape.PathMatcher
	budget     *cost.Budget
	quota      *harvest.Quota
	now        func() time.Time
}

// Option customizes an Agent.
type Option func(*Agent)

// WithExclusions drops candidates whose URL the matcher excludes before
// they reach the classifier.
func WithExclusions(m *scrape.PathMatcher) Option {
	return func(a *Agent) { a.excluded = m }
}

// WithBudget stops planning once budget is exhausted.
func WithBudget(b *cost.Budget) Option {
	return func(a *Agent) { a.budget = b }
}

// WithQuota reports web-search usage from q in the summary.
func WithQuota(q *harvest.Quota) Option {
	return func(a *Agent) { a.quota = q }
}

// NewAgent creates an Agent.
func NewAgent(cfg Config, p Planner, harvesters []harvest.Harvester, c classify.Classifier, s DocumentStore, opts ...Option) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if cfg.QueriesPerIteration <= 0 {
		cfg.QueriesPerIteration = 3
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = model.AllLanguages()
	}
	a := &Agent{
		cfg:        cfg,
		planner:    p,
		harvesters: harvesters,
		classifier: c,
		store:      s,
		now:        time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RunContext is the state owned by one invocation.
type RunContext struct {
	ID      string
	seen    map[string]struct{}
	summary *RunSummary
}

func newRunContext(known map[string]struct{}, started time.Time) *RunContext {
	if known == nil {
		known = make(map[string]struct{})
	}
	id := uuid.NewString()
	return &RunContext{
		ID:   id,
		seen: known,
		summary: &RunSummary{
			RunID:     id,
			StartedAt: started,
			Languages: make(map[model.Language]*LanguageStats),
		},
	}
}

// markSeen records id and reports whether it was already known.
func (rc *RunContext) markSeen(id string) bool {
	if _, ok := rc.seen[id]; ok {
		return true
	}
	rc.seen[id] = struct{}{}
	return false
}

// Run executes one collection run over every configured language. It fails
// only when the seen-set cannot be loaded; every other fault is counted in
// the summary.
func (a *Agent) Run(ctx context.Context) (*RunSummary, error) {
	known, err := a.store.KnownIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "planner: load known ids")
	}
	rc := newRunContext(known, a.now().UTC())
	zap.L().Info("planner: run started",
		zap.String("run_id", rc.ID),
		zap.Int("known_documents", len(known)),
		zap.Int("harvesters", len(a.harvesters)),
	)

	for _, lang := range a.cfg.Languages {
		if ctx.Err() != nil {
			break
		}
		a.runLanguage(ctx, rc, lang)
	}

	s := rc.summary
	s.FinishedAt = a.now().UTC()
	if a.quota != nil {
		s.WebSearchCalls = a.quota.Used()
	}
	if a.budget != nil {
		s.CostUSD = a.budget.Spent()
	}
	s.log()
	return s, nil
}

func (a *Agent) runLanguage(ctx context.Context, rc *RunContext, lang model.Language) {
	stats := rc.summary.stats(lang)
	log := zap.L().With(zap.String("run_id", rc.ID), zap.String("lang", string(lang)))

	var history []model.SearchHistoryEntry
	for iter := 1; iter <= a.cfg.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return
		}
		if a.budget != nil && a.budget.Exhausted() {
			log.Info("planner: cost budget exhausted, stopping planning", zap.Int("iteration", iter))
			rc.summary.BudgetExhausted = true
			break
		}

		queries, err := a.planner.Plan(ctx, PlanRequest{
			Language:      lang,
			Iteration:     iter,
			MaxIterations: a.cfg.MaxIterations,
			Count:         a.cfg.QueriesPerIteration,
			Found:         stats.Accepted,
			History:       history,
		})
		if err != nil {
			log.Warn("planner: planning failed, skipping iteration", zap.Int("iteration", iter), zap.Error(err))
			rc.summary.addError(lang, "plan iteration %d: %v", iter, err)
			continue
		}

		for _, q := range queries {
			entry := a.runQuery(ctx, rc, lang, q.Query)
			entry.Iteration = iter
			entry.Rationale = q.Rationale
			history = append(history, entry)
			rc.summary.History = append(rc.summary.History, entry)
		}
	}

	if stats.Accepted > 0 {
		return
	}
	fallback := a.cfg.FallbackQueries[lang]
	if len(fallback) == 0 {
		return
	}
	log.Info("planner: no documents accepted, running fallback queries", zap.Int("queries", len(fallback)))
	stats.FallbackUsed = true
	for _, q := range fallback {
		if ctx.Err() != nil {
			return
		}
		entry := a.runQuery(ctx, rc, lang, q)
		entry.Iteration = a.cfg.MaxIterations + 1
		entry.Fallback = true
		rc.summary.History = append(rc.summary.History, entry)
	}
}

// runQuery harvests, filters and persists the results of one query.
func (a *Agent) runQuery(ctx context.Context, rc *RunContext, lang model.Language, query string) model.SearchHistoryEntry {
	stats := rc.summary.stats(lang)
	entry := model.SearchHistoryEntry{Language: lang, Query: query}

	for _, h := range a.harvesters {
		cands := h.Search(ctx, query, lang)
		entry.ResultCount += len(cands)
		stats.Harvested += len(cands)

		for _, c := range cands {
			if a.excluded != nil && a.excluded.IsExcluded(c.URL) {
				stats.Excluded++
				continue
			}
			if rc.markSeen(c.ID()) {
				stats.Seen++
				continue
			}
			if a.handle(ctx, rc, c, query) {
				entry.Accepted++
			}
		}
	}

	zap.L().Debug("planner: query complete",
		zap.String("lang", string(lang)),
		zap.String("query", query),
		zap.Int("results", entry.ResultCount),
		zap.Int("accepted", entry.Accepted),
	)
	return entry
}

// handle classifies and stores one unseen candidate. It reports whether a
// new document was stored.
func (a *Agent) handle(ctx context.Context, rc *RunContext, c model.Candidate, query string) bool {
	lang := c.Language
	stats := rc.summary.stats(lang)

	res := a.classifier.Classify(ctx, classify.FromCandidate(c))
	if !res.Relevant {
		stats.Rejected++
		zap.L().Debug("planner: candidate rejected",
			zap.String("url", c.URL),
			zap.String("reason", res.Reason),
			zap.Bool("undecided", res.Undecided),
		)
		return false
	}

	doc := model.NewStoredDocument(c, res, query, a.now())
	inserted, err := a.store.PutIfAbsent(ctx, doc)
	switch {
	case err != nil:
		stats.Errors++
		metrics.StoredTotal.WithLabelValues(string(lang), "error").Inc()
		zap.L().Warn("planner: store write failed", zap.String("url", c.URL), zap.Error(err))
		rc.summary.addError(lang, "store %s: %v", c.URL, err)
		return false
	case !inserted:
		stats.Duplicate++
		metrics.StoredTotal.WithLabelValues(string(lang), "duplicate").Inc()
		return false
	}

	stats.Accepted++
	metrics.StoredTotal.WithLabelValues(string(lang), "inserted").Inc()
	if doc.IsLiterature() {
		rc.summary.NewLiterature = append(rc.summary.NewLiterature, doc)
	}
	zap.L().Info("planner: document stored",
		zap.String("id", doc.ID),
		zap.String("kind", string(doc.Kind)),
		zap.String("lang", string(lang)),
		zap.String("title", doc.Title),
	)
	return true
}
