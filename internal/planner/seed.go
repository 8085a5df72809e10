package planner

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/model"
)

// SeedPlanner hands out a fixed query list per language in order, skipping
// queries already in the history. It stands in for the LLM planner when no
// Anthropic key is configured.
type SeedPlanner struct {
	queries map[model.Language][]string
}

// NewSeedPlanner creates a SeedPlanner over queries.
func NewSeedPlanner(queries map[model.Language][]string) *SeedPlanner {
	return &SeedPlanner{queries: queries}
}

func (p *SeedPlanner) Plan(_ context.Context, req PlanRequest) ([]PlannedQuery, error) {
	proposed := make([]PlannedQuery, 0, len(p.queries[req.Language]))
	for _, q := range p.queries[req.Language] {
		proposed = append(proposed, PlannedQuery{Query: q, Rationale: "seed query"})
	}
	out := dedupeQueries(proposed, req.History, req.Count)
	if len(out) == 0 {
		return nil, eris.Errorf("planner: seed queries for %s exhausted", req.Language)
	}
	return out, nil
}
