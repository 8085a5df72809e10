// Package cost prices LLM and search API usage and enforces per-run spend budgets.
package cost

// Rates holds per-provider pricing.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
	Jina      JinaRate             `yaml:"jina" mapstructure:"jina"`
}

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// JinaRate holds Jina Search pricing.
type JinaRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator. Models missing from rates cost nothing.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

func perMillion(tokens int64, usd float64) float64 {
	return float64(tokens) / 1e6 * usd
}

// Claude prices one Messages API call.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return perMillion(input, rate.Input) +
		perMillion(output, rate.Output) +
		perMillion(cacheWrite, rate.Input*rate.CacheWriteMul) +
		perMillion(cacheRead, rate.Input*rate.CacheReadMul)
}

// OpenAI prices an embedding or chat completion call.
func (c *Calculator) OpenAI(model string, input, output int64) float64 {
	rate, ok := c.rates.OpenAI[model]
	if !ok {
		return 0
	}
	return perMillion(input, rate.Input) + perMillion(output, rate.Output)
}

// JinaSearch prices n search queries.
func (c *Calculator) JinaSearch(n int) float64 {
	return float64(n) * c.rates.Jina.PerQuery
}

// DefaultRates returns list prices for the models the tool uses by default.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		},
		OpenAI: map[string]ModelRate{
			"text-embedding-3-small": {Input: 0.02},
			"gpt-4o-mini":            {Input: 0.15, Output: 0.60},
		},
		Jina: JinaRate{PerQuery: 0.002},
	}
}
