// Package planner runs the collection agent: an LLM proposes search queries,
// harvesters run them, the classifier filters the results and accepted
// documents are stored.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/cost"
	"github.com/sells-group/autotrans-cli/internal/metrics"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/pkg/anthropic"
)

// PlanRequest is the state a planner conditions on.
type PlanRequest struct {
	Language      model.Language
	Iteration     int
	MaxIterations int
	Count         int // queries wanted
	Found         int // documents accepted so far for the language
	History       []model.SearchHistoryEntry
}

// PlannedQuery is one query the planner wants run.
type PlannedQuery struct {
	Query     string `json:"query"`
	Rationale string `json:"rationale"`
}

// Planner proposes the next batch of queries.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) ([]PlannedQuery, error)
}

const planSystemPrompt = `You plan web, news, literature and video searches for a knowledge base about tooth autotransplantation (transplanting a patient's own tooth to another site in the mouth), including donor tooth replicas, CBCT planning, 3D-printed guides, recipient-site preparation, healing and long-term outcomes, and clinical cases.

Each round you receive the search history so far with how many results and new documents each query produced, and the number of documents found. Propose new queries that explore angles not yet covered. Never repeat or lightly reword a previous query. Prefer specific clinical, technical or outcome angles over generic ones. Queries that found nothing suggest the angle is exhausted or too narrow.

Write queries in the requested language, as a native researcher would type them into a search engine. Keep each under 10 words.

Respond with JSON only:
{"queries": [{"query": "<search query>", "rationale": "<one short sentence>"}]}`

const planUserPrompt = `Language: %s
Iteration: %d of %d
Documents found so far: %d
Queries wanted: %d

Search history:
%s`

// LLMConfig configures an LLMPlanner.
type LLMConfig struct {
	Model     string
	MaxTokens int64
}

// LLMPlanner plans with the Anthropic Messages API.
type LLMPlanner struct {
	client anthropic.Client
	cfg    LLMConfig
	calc   *cost.Calculator
	budget *cost.Budget
}

// NewLLMPlanner creates an LLMPlanner. calc and budget may be nil.
func NewLLMPlanner(client anthropic.Client, cfg LLMConfig, calc *cost.Calculator, budget *cost.Budget) *LLMPlanner {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &LLMPlanner{client: client, cfg: cfg, calc: calc, budget: budget}
}

// Plan implements Planner. Proposed queries already in the history, and
// duplicates within the batch, are dropped.
func (p *LLMPlanner) Plan(ctx context.Context, req PlanRequest) ([]PlannedQuery, error) {
	temp := 0.7
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(planSystemPrompt),
		Messages: []anthropic.Message{{
			Role: "user",
			Content: fmt.Sprintf(planUserPrompt,
				languageName(req.Language), req.Iteration, req.MaxIterations, req.Found, req.Count,
				formatHistory(req.History)),
		}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "planner: plan queries")
	}
	p.charge(resp)

	var out struct {
		Queries []PlannedQuery `json:"queries"`
	}
	if err := anthropic.DecodeJSON(resp.Text(), &out); err != nil {
		return nil, eris.Wrap(err, "planner: parse plan")
	}

	queries := dedupeQueries(out.Queries, req.History, req.Count)
	if len(queries) == 0 {
		return nil, eris.New("planner: no new queries proposed")
	}
	return queries, nil
}

func (p *LLMPlanner) charge(resp *anthropic.MessageResponse) {
	u := resp.Usage
	var usd float64
	if p.calc != nil {
		usd = p.calc.Claude(p.cfg.Model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)
	}
	u.Log(p.cfg.Model, "plan", usd)
	metrics.LLMCostUSD.WithLabelValues("anthropic", p.cfg.Model).Add(usd)
	if p.budget != nil {
		if err := p.budget.Charge(usd); err != nil {
			zap.L().Info("planner: cost budget reached", zap.Float64("spent_usd", p.budget.Spent()))
		}
	}
}

func formatHistory(history []model.SearchHistoryEntry) string {
	if len(history) == 0 {
		return "(none yet)"
	}
	var sb strings.Builder
	for _, h := range history {
		fmt.Fprintf(&sb, "- [%d] %q results=%d new=%d", h.Iteration, h.Query, h.ResultCount, h.Accepted)
		if h.Rationale != "" {
			sb.WriteString(" (" + h.Rationale + ")")
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func queryKey(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func dedupeQueries(proposed []PlannedQuery, history []model.SearchHistoryEntry, limit int) []PlannedQuery {
	used := make(map[string]struct{}, len(history))
	for _, h := range history {
		used[queryKey(h.Query)] = struct{}{}
	}
	var out []PlannedQuery
	for _, q := range proposed {
		q.Query = strings.TrimSpace(q.Query)
		key := queryKey(q.Query)
		if key == "" {
			continue
		}
		if _, dup := used[key]; dup {
			continue
		}
		used[key] = struct{}{}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func languageName(l model.Language) string {
	if l == model.LangJA {
		return "Japanese (ja)"
	}
	return "English (en)"
}
