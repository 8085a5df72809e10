package classify

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/cost"
	"github.com/sells-group/autotrans-cli/internal/metrics"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/scrape"
	"github.com/sells-group/autotrans-cli/pkg/anthropic"
)

// DefaultRubric is the system prompt used when no rubric file is configured.
const DefaultRubric = `You screen documents for a knowledge base about tooth autotransplantation: moving a patient's own tooth (typically a third molar or premolar) into another site in the same mouth.

Include a document when its main subject is one of:
- tooth autotransplantation or autogenous tooth transplantation in humans
- donor tooth replicas, CBCT planning, 3D-printed surgical guides or recipient-site preparation for autotransplantation
- outcomes, survival, root development, periodontal ligament healing or orthodontic management of transplanted teeth
- clinical cases, lectures or surgical videos of the procedure

Exclude a document when:
- it concerns organ, kidney, liver, cornea, bone marrow, skin or hair transplantation
- it is about dental implants, bone grafts or allografts without autotransplantation of a tooth
- it is clinic advertising, pricing, rankings or patient reviews
- dentistry is mentioned only in passing

Kind taxonomy (pick exactly one):
- research: studies, reviews, academic papers
- case: single case reports or case series
- news: press coverage or announcements
- video: lectures, surgical or explanatory videos
- product: devices, software or materials used in the procedure
- market: market, industry or business reports

Respond with JSON only, no prose:
{"relevant": true|false, "kind": "<kind>", "headline": "<short headline>", "summary": "<one or two sentence summary>", "reason": "<why>"}

Write headline and summary in the target language given in the request. When relevant is false, headline and summary may be empty.`

const classifyUserPrompt = `Target language: %s
Source: %s
URL: %s
Title: %s

Content:
%s`

// LoadRubric reads a rubric file. An empty path returns DefaultRubric.
func LoadRubric(path string) (string, error) {
	if path == "" {
		return DefaultRubric, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "classify: read rubric %s", path)
	}
	rubric := strings.TrimSpace(string(data))
	if rubric == "" {
		return "", eris.Errorf("classify: rubric %s is empty", path)
	}
	return rubric, nil
}

// BodyFetcher returns readable page text for a URL.
type BodyFetcher interface {
	Body(ctx context.Context, url string) (string, error)
}

// LLMConfig configures an LLM classifier.
type LLMConfig struct {
	Model     string
	MaxTokens int64
	Rubric    string
	// ContentChars caps the title-plus-content text sent per call.
	ContentChars int
}

// LLM classifies with the Anthropic Messages API against a fixed rubric.
type LLM struct {
	client anthropic.Client
	cfg    LLMConfig
	calc   *cost.Calculator
	budget *cost.Budget
	body   BodyFetcher
}

// LLMOption customizes an LLM classifier.
type LLMOption func(*LLM)

// WithCost prices each call with calc and charges it to budget. Either may
// be nil.
func WithCost(calc *cost.Calculator, budget *cost.Budget) LLMOption {
	return func(l *LLM) {
		l.calc = calc
		l.budget = budget
	}
}

// WithBodyFetcher fetches the page body when the input carries none.
func WithBodyFetcher(b BodyFetcher) LLMOption {
	return func(l *LLM) { l.body = b }
}

// NewLLM creates an LLM classifier.
func NewLLM(client anthropic.Client, cfg LLMConfig, opts ...LLMOption) *LLM {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Rubric == "" {
		cfg.Rubric = DefaultRubric
	}
	if cfg.ContentChars <= 0 {
		cfg.ContentChars = 4000
	}
	l := &LLM{client: client, cfg: cfg}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Name implements Classifier.
func (l *LLM) Name() string { return ModeLLM }

type llmVerdict struct {
	Relevant *bool  `json:"relevant"`
	Kind     string `json:"kind"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Reason   string `json:"reason"`
}

// Classify implements Classifier. Any API, parse or validation failure is an
// undecided rejection and is not retried. No call is made once the budget is
// exhausted.
func (l *LLM) Classify(ctx context.Context, in Input) model.ClassifyResult {
	log := zap.L().With(zap.String("url", in.URL), zap.String("lang", string(in.Language)))

	if strings.TrimSpace(in.Title) == "" {
		return observe(l.Name(), model.Rejected("empty title"))
	}
	if l.budget != nil && l.budget.Exhausted() {
		return observe(l.Name(), model.Undecided("cost budget exhausted"))
	}

	content := in.Summary
	if in.Body != "" {
		content = in.Body
	} else if l.body != nil && in.URL != "" && !in.Source.IsVideo() {
		if body, err := l.body.Body(ctx, in.URL); err != nil {
			log.Debug("classify: body fetch failed, using snippet", zap.Error(err))
		} else if strings.TrimSpace(body) != "" {
			content = body
		}
	}
	content = scrape.Truncate(content, l.cfg.ContentChars)

	temp := 0.0
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.cfg.Model,
		MaxTokens: l.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(l.cfg.Rubric),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(classifyUserPrompt, languageName(in.Language), in.Source, in.URL, in.Title, content),
		}},
		Temperature: &temp,
	})
	if err != nil {
		log.Warn("classify: llm call failed", zap.Error(err))
		return observe(l.Name(), model.Undecided("llm error"))
	}
	l.charge(resp)

	res, err := parseVerdict(resp.Text())
	if err != nil {
		log.Warn("classify: unusable llm response", zap.Error(err))
		return observe(l.Name(), model.Undecided("malformed llm response"))
	}
	return observe(l.Name(), res)
}

func (l *LLM) charge(resp *anthropic.MessageResponse) {
	u := resp.Usage
	var usd float64
	if l.calc != nil {
		usd = l.calc.Claude(l.cfg.Model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)
	}
	u.Log(l.cfg.Model, "classify", usd)
	metrics.LLMCostUSD.WithLabelValues("anthropic", l.cfg.Model).Add(usd)
	if l.budget != nil {
		if err := l.budget.Charge(usd); err != nil {
			zap.L().Info("classify: cost budget exhausted", zap.Float64("spent_usd", l.budget.Spent()))
		}
	}
}

func parseVerdict(text string) (model.ClassifyResult, error) {
	var v llmVerdict
	if err := anthropic.DecodeJSON(text, &v); err != nil {
		return model.ClassifyResult{}, err
	}
	if v.Relevant == nil {
		return model.ClassifyResult{}, eris.New("classify: response has no relevant field")
	}
	if !*v.Relevant {
		return model.Rejected(strings.TrimSpace(v.Reason)), nil
	}
	kind, err := model.ParseKind(v.Kind)
	if err != nil {
		return model.ClassifyResult{}, err
	}
	return model.ClassifyResult{
		Relevant: true,
		Kind:     kind,
		Headline: strings.TrimSpace(v.Headline),
		Summary:  strings.TrimSpace(v.Summary),
		Reason:   strings.TrimSpace(v.Reason),
	}, nil
}

func languageName(l model.Language) string {
	if l == model.LangJA {
		return "Japanese"
	}
	return "English"
}
