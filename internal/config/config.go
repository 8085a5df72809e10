package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Collect    CollectConfig    `yaml:"collect" mapstructure:"collect"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	PubMed     PubMedConfig     `yaml:"pubmed" mapstructure:"pubmed"`
	YouTube    YouTubeConfig    `yaml:"youtube" mapstructure:"youtube"`
	Vector     VectorConfig     `yaml:"vector" mapstructure:"vector"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the document store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CollectConfig configures a collection run.
type CollectConfig struct {
	Languages             []string            `yaml:"languages" mapstructure:"languages"`
	MaxIterations         int                 `yaml:"max_iterations" mapstructure:"max_iterations"`
	QueriesPerIteration   int                 `yaml:"queries_per_iteration" mapstructure:"queries_per_iteration"`
	ResultsPerQuery       int                 `yaml:"results_per_query" mapstructure:"results_per_query"`
	WebSearchCeiling      int                 `yaml:"web_search_ceiling" mapstructure:"web_search_ceiling"`
	Harvesters            []string            `yaml:"harvesters" mapstructure:"harvesters"`
	ExcludedURLSubstrings []string            `yaml:"excluded_url_substrings" mapstructure:"excluded_url_substrings"`
	FallbackQueries       map[string][]string `yaml:"fallback_queries" mapstructure:"fallback_queries"`
	CostBudgetUSD         float64             `yaml:"cost_budget_usd" mapstructure:"cost_budget_usd"`
	RequestsPerSecond     float64             `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BreakerFailures       int                 `yaml:"breaker_failures" mapstructure:"breaker_failures"`
}

// ClassifierConfig selects and tunes the relevance classifier.
type ClassifierConfig struct {
	Mode          string `yaml:"mode" mapstructure:"mode"` // heuristic | llm | chain
	TermsFile     string `yaml:"terms_file" mapstructure:"terms_file"`
	RubricFile    string `yaml:"rubric_file" mapstructure:"rubric_file"`
	MinSupporting int    `yaml:"min_supporting" mapstructure:"min_supporting"`
	FetchBody     string `yaml:"fetch_body" mapstructure:"fetch_body"` // off | html | jina
	BodyMaxChars  int    `yaml:"body_max_chars" mapstructure:"body_max_chars"`
}

// IndexConfig configures full-text sectioning and vector indexing.
type IndexConfig struct {
	Languages       []string `yaml:"languages" mapstructure:"languages"`
	MinSectionChars int      `yaml:"min_section_chars" mapstructure:"min_section_chars"`
	SectionDelayMS  int      `yaml:"section_delay_ms" mapstructure:"section_delay_ms"`
	PaperDelayMS    int      `yaml:"paper_delay_ms" mapstructure:"paper_delay_ms"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ClassifierModel string `yaml:"classifier_model" mapstructure:"classifier_model"`
	PlannerModel    string `yaml:"planner_model" mapstructure:"planner_model"`
	MaxTokens       int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OpenAIConfig holds embedding and translation settings.
type OpenAIConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	EmbeddingModel   string `yaml:"embedding_model" mapstructure:"embedding_model"`
	TranslationModel string `yaml:"translation_model" mapstructure:"translation_model"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// NewsConfig configures the news feed harvester.
type NewsConfig struct {
	BaseURL     string            `yaml:"base_url" mapstructure:"base_url"`
	SeedQueries map[string]string `yaml:"seed_queries" mapstructure:"seed_queries"`
}

// PubMedConfig holds NCBI E-utilities settings.
type PubMedConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	IDConvURL string `yaml:"idconv_url" mapstructure:"idconv_url"`
	Key       string `yaml:"key" mapstructure:"key"`
	Email     string `yaml:"email" mapstructure:"email"`
	Tool      string `yaml:"tool" mapstructure:"tool"`
}

// YouTubeConfig configures the video harvesters.
type YouTubeConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	FeedURL    string `yaml:"feed_url" mapstructure:"feed_url"`
	MaxResults int64  `yaml:"max_results" mapstructure:"max_results"`
}

// VectorConfig configures the Redis vector store.
type VectorConfig struct {
	Addr       string `yaml:"addr" mapstructure:"addr"`
	Password   string `yaml:"password" mapstructure:"password"`
	Index      string `yaml:"index" mapstructure:"index"`
	Prefix     string `yaml:"prefix" mapstructure:"prefix"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
	Jina      JinaPricing             `yaml:"jina" mapstructure:"jina"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// JinaPricing holds Jina Search pricing.
type JinaPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// ServerConfig configures the read API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUTOTRANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "autotrans.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("collect.languages", []string{"ja", "en"})
	v.SetDefault("collect.max_iterations", 3)
	v.SetDefault("collect.queries_per_iteration", 3)
	v.SetDefault("collect.results_per_query", 10)
	v.SetDefault("collect.web_search_ceiling", 20)
	v.SetDefault("collect.harvesters", []string{"news", "web", "pubmed", "video"})
	v.SetDefault("collect.excluded_url_substrings", []string{
		"/tag/", "/tags/", "/category/", "/categories/", "/author/",
		"/archive", "/feed", "/wp-admin", "/admin/", "/page/",
	})
	v.SetDefault("collect.fallback_queries", map[string][]string{
		"ja": {"自家歯牙移植", "歯牙移植 症例", "ドナーレプリカ"},
		"en": {"autotransplantation", "tooth transplantation"},
	})
	v.SetDefault("collect.cost_budget_usd", 1.0)
	v.SetDefault("collect.requests_per_second", 1.0)
	v.SetDefault("collect.breaker_failures", 3)

	v.SetDefault("classifier.mode", "chain")
	v.SetDefault("classifier.min_supporting", 2)
	v.SetDefault("classifier.fetch_body", "off")
	v.SetDefault("classifier.body_max_chars", 4000)

	v.SetDefault("index.languages", []string{"en", "ja"})
	v.SetDefault("index.min_section_chars", 50)
	v.SetDefault("index.section_delay_ms", 500)
	v.SetDefault("index.paper_delay_ms", 1000)

	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.classifier_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.planner_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)

	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.translation_model", "gpt-4o-mini")

	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")

	v.SetDefault("news.base_url", "https://news.google.com/rss/search")
	v.SetDefault("news.seed_queries", map[string]string{
		"ja": "自家歯牙移植 OR 歯牙移植",
		"en": `"tooth autotransplantation" OR "autogenous tooth transplantation"`,
	})

	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.idconv_url", "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/")
	v.SetDefault("pubmed.key", "")
	v.SetDefault("pubmed.tool", "autotrans-cli")

	v.SetDefault("youtube.key", "")
	v.SetDefault("youtube.feed_url", "https://www.youtube.com/feeds/videos.xml")
	v.SetDefault("youtube.max_results", 10)

	v.SetDefault("vector.addr", "localhost:6379")
	v.SetDefault("vector.password", "")
	v.SetDefault("vector.index", "autotrans_chunks")
	v.SetDefault("vector.prefix", "chunk:")
	v.SetDefault("vector.dimensions", 1536)

	v.SetDefault("pricing.anthropic", map[string]any{
		"claude-haiku-4-5-20251001":  map[string]any{"input": 1.0, "output": 5.0, "cache_write_mul": 1.25, "cache_read_mul": 0.1},
		"claude-sonnet-4-5-20250929": map[string]any{"input": 3.0, "output": 15.0, "cache_write_mul": 1.25, "cache_read_mul": 0.1},
	})
	v.SetDefault("pricing.openai", map[string]any{
		"text-embedding-3-small": map[string]any{"input": 0.02},
		"gpt-4o-mini":            map[string]any{"input": 0.15, "output": 0.6},
	})
	v.SetDefault("pricing.jina.per_query", 0.002)
}

// Validate checks the fields a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "collect":
		if c.Collect.MaxIterations < 1 || c.Collect.MaxIterations > 20 {
			errs = append(errs, "collect.max_iterations must be between 1 and 20")
		}
		if c.Collect.WebSearchCeiling < 0 {
			errs = append(errs, "collect.web_search_ceiling must be >= 0")
		}
		if c.Collect.CostBudgetUSD < 0 {
			errs = append(errs, "collect.cost_budget_usd must be >= 0")
		}
		if len(c.Collect.Languages) == 0 {
			errs = append(errs, "collect.languages must not be empty")
		}
		switch c.Classifier.Mode {
		case "heuristic":
		case "llm", "chain":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required for classifier mode "+c.Classifier.Mode)
			}
		default:
			errs = append(errs, fmt.Sprintf("classifier.mode %q must be heuristic, llm or chain", c.Classifier.Mode))
		}
	case "index":
		if c.OpenAI.Key == "" {
			errs = append(errs, "openai.key is required")
		}
		if c.Vector.Addr == "" {
			errs = append(errs, "vector.addr is required")
		}
		if c.Vector.Dimensions <= 0 {
			errs = append(errs, "vector.dimensions must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
