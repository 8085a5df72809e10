package planner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/model"
)

// LanguageStats counts candidate outcomes for one language.
type LanguageStats struct {
	Harvested    int  `json:"harvested"`
	Excluded     int  `json:"excluded"`
	Seen         int  `json:"seen"`
	Rejected     int  `json:"rejected"`
	Accepted     int  `json:"accepted"`
	Duplicate    int  `json:"duplicate"`
	Errors       int  `json:"errors"`
	FallbackUsed bool `json:"fallback_used"`
}

// RunSummary is the end-of-run report.
type RunSummary struct {
	RunID           string                            `json:"run_id"`
	StartedAt       time.Time                         `json:"started_at"`
	FinishedAt      time.Time                         `json:"finished_at"`
	Languages       map[model.Language]*LanguageStats `json:"languages"`
	History         []model.SearchHistoryEntry        `json:"history"`
	Errors          []string                          `json:"errors,omitempty"`
	WebSearchCalls  int                               `json:"web_search_calls"`
	CostUSD         float64                           `json:"cost_usd"`
	BudgetExhausted bool                              `json:"budget_exhausted,omitempty"`

	// NewLiterature lists literature documents stored by this run, for the
	// indexing stage.
	NewLiterature []model.StoredDocument `json:"-"`
}

// TotalAccepted sums accepted documents over all languages.
func (s *RunSummary) TotalAccepted() int {
	n := 0
	for _, st := range s.Languages {
		n += st.Accepted
	}
	return n
}

func (s *RunSummary) stats(lang model.Language) *LanguageStats {
	st, ok := s.Languages[lang]
	if !ok {
		st = &LanguageStats{}
		s.Languages[lang] = st
	}
	return st
}

func (s *RunSummary) addError(lang model.Language, format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf("[%s] ", lang)+fmt.Sprintf(format, args...))
}

func (s *RunSummary) log() {
	for lang, st := range s.Languages {
		zap.L().Info("planner: language summary",
			zap.String("run_id", s.RunID),
			zap.String("lang", string(lang)),
			zap.Int("harvested", st.Harvested),
			zap.Int("excluded", st.Excluded),
			zap.Int("seen", st.Seen),
			zap.Int("rejected", st.Rejected),
			zap.Int("accepted", st.Accepted),
			zap.Int("duplicate", st.Duplicate),
			zap.Int("errors", st.Errors),
			zap.Bool("fallback_used", st.FallbackUsed),
		)
	}
	zap.L().Info("planner: run finished",
		zap.String("run_id", s.RunID),
		zap.Int("accepted", s.TotalAccepted()),
		zap.Int("queries", len(s.History)),
		zap.Int("errors", len(s.Errors)),
		zap.Int("web_search_calls", s.WebSearchCalls),
		zap.Float64("cost_usd", s.CostUSD),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	)
}
