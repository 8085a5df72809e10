package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/autotrans-cli/internal/classify"
	"github.com/sells-group/autotrans-cli/internal/config"
	"github.com/sells-group/autotrans-cli/internal/cost"
	"github.com/sells-group/autotrans-cli/internal/harvest"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/pkg/anthropic/mocks"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
		Collect: config.CollectConfig{
			Languages:        []string{"ja", "en"},
			MaxIterations:    1,
			WebSearchCeiling: 2,
			ResultsPerQuery:  5,
			Harvesters:       []string{"news", "web", "pubmed", "video"},
			FallbackQueries:  map[string][]string{"ja": {"自家歯牙移植"}},
		},
		Classifier: config.ClassifierConfig{Mode: "heuristic", MinSupporting: 2, FetchBody: "off"},
		News:       config.NewsConfig{BaseURL: "https://news.google.com/rss/search"},
		YouTube:    config.YouTubeConfig{FeedURL: "https://www.youtube.com/feeds/videos.xml"},
	}
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = testConfig(t)
	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "mongo"
	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestParseLanguages(t *testing.T) {
	got, err := parseLanguages([]string{"JA", "en"})
	require.NoError(t, err)
	assert.Equal(t, []model.Language{model.LangJA, model.LangEN}, got)

	_, err = parseLanguages([]string{"all"})
	assert.Error(t, err)
}

func TestFallbackQueries(t *testing.T) {
	got, err := fallbackQueries(map[string][]string{"en": {"autotransplantation"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"autotransplantation"}, got[model.LangEN])

	_, err = fallbackQueries(map[string][]string{"de": {"x"}})
	assert.Error(t, err)
}

func TestNewCalculator(t *testing.T) {
	calc := newCalculator(config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{"claude-haiku-4-5-20251001": {Input: 1, Output: 5}},
		OpenAI:    map[string]config.ModelPricing{"gpt-4o-mini": {Input: 0.15, Output: 0.6}},
		Jina:      config.JinaPricing{PerQuery: 0.002},
	})
	assert.InDelta(t, 6.0, calc.Claude("claude-haiku-4-5-20251001", 1_000_000, 1_000_000, 0, 0), 1e-9)
	assert.InDelta(t, 0.75, calc.OpenAI("gpt-4o-mini", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 0.004, calc.JinaSearch(2), 1e-9)
}

func TestBuildHarvesters(t *testing.T) {
	cfg = testConfig(t)
	f := newFetcher()
	hs, quota, err := buildHarvesters(context.Background(), f, newJina(), newPubMed(f), harvest.GuardConfig{})
	require.NoError(t, err)
	require.NotNil(t, quota)
	assert.Equal(t, 2, quota.Remaining())

	var names []string
	for _, h := range hs {
		names = append(names, h.Name())
	}
	assert.Equal(t, []string{"news", "web", "pubmed", "video"}, names)
	assert.IsType(t, &harvest.YouTubeFeed{}, hs[3])
}

func TestBuildHarvesters_Errors(t *testing.T) {
	cfg = testConfig(t)
	f := newFetcher()

	cfg.Collect.Harvesters = []string{"gopher"}
	_, _, err := buildHarvesters(context.Background(), f, newJina(), newPubMed(f), harvest.GuardConfig{})
	assert.ErrorContains(t, err, "unknown harvester")

	cfg.Collect.Harvesters = nil
	_, _, err = buildHarvesters(context.Background(), f, newJina(), newPubMed(f), harvest.GuardConfig{})
	assert.Error(t, err)
}

func TestBuildClassifier(t *testing.T) {
	cfg = testConfig(t)
	calc := cost.NewCalculator(cost.DefaultRates())

	c, err := buildClassifier(nil, newJina(), calc, cost.NewBudget(0))
	require.NoError(t, err)
	assert.Equal(t, classify.ModeHeuristic, c.Name())

	cfg.Classifier.Mode = "chain"
	_, err = buildClassifier(nil, newJina(), calc, cost.NewBudget(0))
	assert.Error(t, err)

	c, err = buildClassifier(mocks.NewMockClient(t), newJina(), calc, cost.NewBudget(0))
	require.NoError(t, err)
	assert.Equal(t, classify.ModeChain, c.Name())

	cfg.Classifier.TermsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = buildClassifier(nil, newJina(), calc, cost.NewBudget(0))
	assert.Error(t, err)
}

func TestBodyFetcher(t *testing.T) {
	cfg = testConfig(t)
	assert.Nil(t, bodyFetcher(newJina()))

	cfg.Classifier.FetchBody = "html"
	assert.NotNil(t, bodyFetcher(newJina()))

	cfg.Classifier.FetchBody = "jina"
	assert.NotNil(t, bodyFetcher(newJina()))
}

func TestInitCollect_Validation(t *testing.T) {
	cfg = testConfig(t)
	cfg.Collect.MaxIterations = 0
	_, err := initCollect(context.Background())
	assert.ErrorContains(t, err, "max_iterations")
}

func TestInitCollect_SeedPlannerWithoutKey(t *testing.T) {
	cfg = testConfig(t)
	env, err := initCollect(context.Background())
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Agent)
	assert.Equal(t, []string{"news", "web", "pubmed", "video"}, env.Harvested)
	assert.False(t, env.Budget.Exhausted())
}

func TestInitCollect_NoKeyFallsBackToHeuristic(t *testing.T) {
	for _, mode := range []string{"chain", "llm"} {
		cfg = testConfig(t)
		cfg.Classifier.Mode = mode
		env, err := initCollect(context.Background())
		require.NoError(t, err, mode)
		assert.Equal(t, "heuristic", cfg.Classifier.Mode)
		env.Close()
	}

	cfg = testConfig(t)
	cfg.Classifier.Mode = "bogus"
	_, err := initCollect(context.Background())
	assert.ErrorContains(t, err, "classifier.mode")
}

func TestInitIndex_RequiresKey(t *testing.T) {
	cfg = testConfig(t)
	cfg.Vector = config.VectorConfig{Addr: "localhost:6379", Dimensions: 1536}
	_, err := initIndex(context.Background(), nil)
	assert.ErrorContains(t, err, "openai.key is required")
}

func TestCollectEnv_CloseNil(t *testing.T) {
	assert.NotPanics(t, func() { (&collectEnv{}).Close() })
	assert.NotPanics(t, func() { (&indexEnv{}).Close() })
}
