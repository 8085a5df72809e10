package classify

import (
	"context"
	"strings"

	"github.com/sells-group/autotrans-cli/internal/model"
)

// Heuristic classifies by keyword lists alone. It is free and deterministic,
// and serves as the pre-filter in front of the LLM.
type Heuristic struct {
	terms         TermSet
	minSupporting int
}

// NewHeuristic creates a Heuristic. minSupporting is the number of distinct
// supporting terms that accepts a text with no core or technique hit.
func NewHeuristic(terms TermSet, minSupporting int) *Heuristic {
	if terms == nil {
		terms = DefaultTerms()
	}
	if minSupporting <= 0 {
		minSupporting = 2
	}
	return &Heuristic{terms: terms, minSupporting: minSupporting}
}

// Name implements Classifier.
func (h *Heuristic) Name() string { return ModeHeuristic }

// Classify implements Classifier.
func (h *Heuristic) Classify(_ context.Context, in Input) model.ClassifyResult {
	return observe(h.Name(), h.judge(in))
}

func (h *Heuristic) judge(in Input) model.ClassifyResult {
	if strings.TrimSpace(in.Title) == "" {
		return model.Rejected("empty title")
	}
	terms, ok := h.terms[in.Language]
	if !ok {
		return model.Rejected("no terms for language " + string(in.Language))
	}

	body := in.Summary
	if in.Body != "" {
		body = in.Body
	}
	text := normalize(in.Title + " " + body)

	if t := firstMatch(text, terms.Deny); t != "" {
		return model.Rejected("deny term: " + t)
	}

	accept := func(reason string) model.ClassifyResult {
		return model.ClassifyResult{
			Relevant: true,
			Kind:     DeriveKind(in.Title, in.Source),
			Reason:   reason,
		}
	}

	if t := firstMatch(text, terms.Core); t != "" {
		return accept("core term: " + t)
	}
	supporting := countMatches(text, terms.Supporting)
	if supporting >= h.minSupporting {
		return accept("supporting terms")
	}
	if supporting > 0 {
		if t := firstMatch(text, terms.Technique); t != "" {
			return accept("supporting term with technique: " + t)
		}
	}
	return model.Rejected("no topical terms")
}

var (
	caseWords  = []string{"症例", "case report", "clinical case", "case series"}
	videoWords = []string{"動画", "video", "tutorial", "technique", "解説"}
)

// DeriveKind assigns a kind from the title and the producing source. Video
// sources always yield video; case-report wording wins over video wording.
func DeriveKind(title string, source model.Source) model.Kind {
	if source.IsVideo() {
		return model.KindVideo
	}
	t := normalize(title)
	if firstMatch(t, caseWords) != "" {
		return model.KindCase
	}
	if firstMatch(t, videoWords) != "" {
		return model.KindVideo
	}
	if source == model.SourceGoogleNews {
		return model.KindNews
	}
	return model.KindResearch
}
