package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/classify"
	"github.com/sells-group/autotrans-cli/internal/config"
	"github.com/sells-group/autotrans-cli/internal/cost"
	"github.com/sells-group/autotrans-cli/internal/db"
	"github.com/sells-group/autotrans-cli/internal/fetcher"
	"github.com/sells-group/autotrans-cli/internal/fulltext"
	"github.com/sells-group/autotrans-cli/internal/harvest"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/planner"
	"github.com/sells-group/autotrans-cli/internal/resilience"
	"github.com/sells-group/autotrans-cli/internal/scrape"
	"github.com/sells-group/autotrans-cli/internal/store"
	"github.com/sells-group/autotrans-cli/internal/vectorstore"
	"github.com/sells-group/autotrans-cli/pkg/anthropic"
	"github.com/sells-group/autotrans-cli/pkg/jina"
	"github.com/sells-group/autotrans-cli/pkg/openai"
	"github.com/sells-group/autotrans-cli/pkg/pubmed"
	"github.com/sells-group/autotrans-cli/pkg/youtube"
)

// initStore opens and migrates the configured document store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &db.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.New(fetcher.Options{
		Timeout: 30 * time.Second,
		Retry:   resilience.DefaultRetryConfig(),
	})
}

func newCalculator(p config.PricingConfig) *cost.Calculator {
	rates := cost.Rates{
		Anthropic: make(map[string]cost.ModelRate, len(p.Anthropic)),
		OpenAI:    make(map[string]cost.ModelRate, len(p.OpenAI)),
		Jina:      cost.JinaRate{PerQuery: p.Jina.PerQuery},
	}
	for name, r := range p.Anthropic {
		rates.Anthropic[name] = cost.ModelRate(r)
	}
	for name, r := range p.OpenAI {
		rates.OpenAI[name] = cost.ModelRate(r)
	}
	return cost.NewCalculator(rates)
}

func parseLanguages(raw []string) ([]model.Language, error) {
	out := make([]model.Language, 0, len(raw))
	for _, s := range raw {
		l, err := model.ParseLanguage(s, false)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func fallbackQueries(raw map[string][]string) (map[model.Language][]string, error) {
	out := make(map[model.Language][]string, len(raw))
	for s, qs := range raw {
		l, err := model.ParseLanguage(s, false)
		if err != nil {
			return nil, eris.Wrap(err, "collect.fallback_queries")
		}
		out[l] = qs
	}
	return out, nil
}

func newJina() jina.Client {
	opts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	return jina.NewClient(cfg.Jina.Key, opts...)
}

func newPubMed(f fetcher.Fetcher) pubmed.Client {
	return pubmed.NewClient(f,
		pubmed.WithBaseURL(cfg.PubMed.BaseURL),
		pubmed.WithIDConvURL(cfg.PubMed.IDConvURL),
		pubmed.WithAPIKey(cfg.PubMed.Key),
		pubmed.WithIdentity(cfg.PubMed.Tool, cfg.PubMed.Email),
	)
}

// collectEnv holds everything a collection run needs.
type collectEnv struct {
	Store     store.Store
	Agent     *planner.Agent
	Budget    *cost.Budget
	Fetcher   fetcher.Fetcher
	PubMed    pubmed.Client
	Calc      *cost.Calculator
	Harvested []string
}

// Close releases resources held by the collection environment.
func (ce *collectEnv) Close() {
	if ce.Store != nil {
		_ = ce.Store.Close()
	}
}

// initCollect wires harvesters, classifier, planner and store into an Agent.
// Callers should defer env.Close().
func initCollect(ctx context.Context) (*collectEnv, error) {
	if cfg.Anthropic.Key == "" && (cfg.Classifier.Mode == classify.ModeLLM || cfg.Classifier.Mode == classify.ModeChain) {
		zap.L().Warn("collect: no anthropic key, classifying heuristically", zap.String("configured_mode", cfg.Classifier.Mode))
		cfg.Classifier.Mode = classify.ModeHeuristic
	}
	if err := cfg.Validate("collect"); err != nil {
		return nil, err
	}

	langs, err := parseLanguages(cfg.Collect.Languages)
	if err != nil {
		return nil, err
	}
	fallback, err := fallbackQueries(cfg.Collect.FallbackQueries)
	if err != nil {
		return nil, err
	}

	calc := newCalculator(cfg.Pricing)
	budget := cost.NewBudget(cfg.Collect.CostBudgetUSD)
	f := newFetcher()
	jinaClient := newJina()
	pm := newPubMed(f)
	guard := harvest.GuardConfig{
		RequestsPerSecond: cfg.Collect.RequestsPerSecond,
		BreakerFailures:   cfg.Collect.BreakerFailures,
	}

	harvesters, quota, err := buildHarvesters(ctx, f, jinaClient, pm, guard)
	if err != nil {
		return nil, err
	}

	var anthropicClient anthropic.Client
	if cfg.Anthropic.Key != "" {
		anthropicClient = anthropic.NewClient(cfg.Anthropic.Key)
	}

	classifier, err := buildClassifier(anthropicClient, jinaClient, calc, budget)
	if err != nil {
		return nil, err
	}

	var p planner.Planner
	if anthropicClient != nil {
		p = planner.NewLLMPlanner(anthropicClient, planner.LLMConfig{
			Model:     cfg.Anthropic.PlannerModel,
			MaxTokens: cfg.Anthropic.MaxTokens,
		}, calc, budget)
	} else {
		zap.L().Warn("anthropic key not set, planning from fixed seed queries")
		p = planner.NewSeedPlanner(fallback)
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(harvesters))
	for _, h := range harvesters {
		names = append(names, h.Name())
	}

	agent := planner.NewAgent(planner.Config{
		Languages:           langs,
		MaxIterations:       cfg.Collect.MaxIterations,
		QueriesPerIteration: cfg.Collect.QueriesPerIteration,
		FallbackQueries:     fallback,
	}, p, harvesters, classifier, st,
		planner.WithExclusions(scrape.NewPathMatcher(cfg.Collect.ExcludedURLSubstrings)),
		planner.WithBudget(budget),
		planner.WithQuota(quota),
	)

	return &collectEnv{
		Store:     st,
		Agent:     agent,
		Budget:    budget,
		Fetcher:   f,
		PubMed:    pm,
		Calc:      calc,
		Harvested: names,
	}, nil
}

// buildHarvesters instantiates the configured harvesters in order. The
// returned quota is nil when web search is not enabled.
func buildHarvesters(ctx context.Context, f fetcher.Fetcher, jinaClient jina.Client, pm pubmed.Client, guard harvest.GuardConfig) ([]harvest.Harvester, *harvest.Quota, error) {
	var (
		out   []harvest.Harvester
		quota *harvest.Quota
	)
	for _, name := range cfg.Collect.Harvesters {
		switch name {
		case "news":
			out = append(out, harvest.NewNewsFeed(f, cfg.News.BaseURL, cfg.News.SeedQueries, guard))
		case "web":
			quota = harvest.NewQuota(cfg.Collect.WebSearchCeiling)
			out = append(out, harvest.NewWebSearch(jinaClient, quota, cfg.Collect.ResultsPerQuery, guard))
		case "pubmed":
			out = append(out, harvest.NewLiterature(pm, cfg.Collect.ResultsPerQuery, guard))
		case "video":
			var yt youtube.Client
			if cfg.YouTube.Key != "" {
				c, err := youtube.NewClient(ctx, cfg.YouTube.Key)
				if err != nil {
					return nil, nil, eris.Wrap(err, "init youtube client")
				}
				yt = c
			}
			out = append(out, harvest.NewVideo(yt, f, cfg.YouTube.FeedURL, cfg.YouTube.MaxResults, guard))
		default:
			return nil, nil, eris.Errorf("unknown harvester %q", name)
		}
	}
	if len(out) == 0 {
		return nil, nil, eris.New("collect.harvesters must name at least one harvester")
	}
	return out, quota, nil
}

// buildClassifier assembles the configured classifier. anthropicClient may
// be nil in heuristic mode.
func buildClassifier(anthropicClient anthropic.Client, jinaClient jina.Client, calc *cost.Calculator, budget *cost.Budget) (classify.Classifier, error) {
	terms, err := classify.LoadTerms(cfg.Classifier.TermsFile)
	if err != nil {
		return nil, err
	}
	h := classify.NewHeuristic(terms, cfg.Classifier.MinSupporting)

	var l *classify.LLM
	if anthropicClient != nil {
		rubric, err := classify.LoadRubric(cfg.Classifier.RubricFile)
		if err != nil {
			return nil, err
		}
		opts := []classify.LLMOption{classify.WithCost(calc, budget)}
		if body := bodyFetcher(jinaClient); body != nil {
			opts = append(opts, classify.WithBodyFetcher(body))
		}
		l = classify.NewLLM(anthropicClient, classify.LLMConfig{
			Model:        cfg.Anthropic.ClassifierModel,
			MaxTokens:    cfg.Anthropic.MaxTokens,
			Rubric:       rubric,
			ContentChars: cfg.Classifier.BodyMaxChars,
		}, opts...)
	}
	return classify.New(cfg.Classifier.Mode, h, l)
}

// bodyFetcher returns the page-body source for the LLM classifier, or nil
// when body fetching is off.
func bodyFetcher(jinaClient jina.Client) classify.BodyFetcher {
	matcher := scrape.NewPathMatcher(cfg.Collect.ExcludedURLSubstrings)
	local := scrape.NewLocalScraper("")
	switch cfg.Classifier.FetchBody {
	case "html":
		return scrape.NewChain(matcher, cfg.Classifier.BodyMaxChars, local, scrape.NewJinaAdapter(jinaClient))
	case "jina":
		return scrape.NewChain(matcher, cfg.Classifier.BodyMaxChars, scrape.NewJinaAdapter(jinaClient), local)
	default:
		return nil
	}
}

// indexEnv holds the vector indexing dependencies.
type indexEnv struct {
	Vectors *vectorstore.RedisStore
	AI      openai.Client
	Indexer *fulltext.Indexer
	Calc    *cost.Calculator
}

// Close releases resources held by the index environment.
func (ie *indexEnv) Close() {
	if ie.Vectors != nil {
		ie.Vectors.Close()
	}
}

// initIndex connects the vector store, ensures its search index exists and
// builds the full-text indexer. pm may be nil, in which case a PubMed client
// is created.
func initIndex(ctx context.Context, pm pubmed.Client) (*indexEnv, error) {
	if err := cfg.Validate("index"); err != nil {
		return nil, err
	}
	langs, err := parseLanguages(cfg.Index.Languages)
	if err != nil {
		return nil, err
	}

	vs, err := vectorstore.NewRedis(vectorstore.Config{
		Addr:       cfg.Vector.Addr,
		Password:   cfg.Vector.Password,
		Index:      cfg.Vector.Index,
		Prefix:     cfg.Vector.Prefix,
		Dimensions: cfg.Vector.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	if err := vs.EnsureIndex(ctx); err != nil {
		vs.Close()
		return nil, err
	}

	if pm == nil {
		pm = newPubMed(newFetcher())
	}
	ai := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAI.Key,
		BaseURL:        cfg.OpenAI.BaseURL,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		Dimensions:     cfg.Vector.Dimensions,
		Retry:          resilience.DefaultRetryConfig(),
	})
	calc := newCalculator(cfg.Pricing)

	ix := fulltext.New(pm, ai, vs, calc, fulltext.Config{
		Languages:        langs,
		MinSectionChars:  cfg.Index.MinSectionChars,
		TranslationModel: cfg.OpenAI.TranslationModel,
		EmbeddingModel:   cfg.OpenAI.EmbeddingModel,
		SectionDelay:     time.Duration(cfg.Index.SectionDelayMS) * time.Millisecond,
		PaperDelay:       time.Duration(cfg.Index.PaperDelayMS) * time.Millisecond,
	})
	return &indexEnv{Vectors: vs, AI: ai, Indexer: ix, Calc: calc}, nil
}
