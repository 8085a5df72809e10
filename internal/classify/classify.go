// Package classify decides whether a candidate is about tooth
// autotransplantation and which kind of document it is.
package classify

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/metrics"
	"github.com/sells-group/autotrans-cli/internal/model"
)

// Input is what a classifier sees of a candidate.
type Input struct {
	Title    string
	Summary  string
	URL      string
	Body     string // page text; replaces Summary when set
	Language model.Language
	Source   model.Source
}

// FromCandidate builds an Input from a harvested candidate.
func FromCandidate(c model.Candidate) Input {
	return Input{
		Title:    c.Title,
		Summary:  c.RawSummary,
		URL:      c.URL,
		Language: c.Language,
		Source:   c.Source,
	}
}

// FromDocument builds an Input from a stored document, using its raw fields
// so a stored item can be re-judged.
func FromDocument(d model.StoredDocument) Input {
	return Input{
		Title:    d.Title,
		Summary:  d.RawSummary,
		URL:      d.URL,
		Language: d.Language,
		Source:   d.Source,
	}
}

// Classifier judges relevance. Classify never fails: any internal error
// yields a non-relevant result marked Undecided.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, in Input) model.ClassifyResult
}

// Modes accepted by New.
const (
	ModeHeuristic = "heuristic"
	ModeLLM       = "llm"
	ModeChain     = "chain"
)

// New selects the classifier for mode. The LLM may be nil for the heuristic
// mode only.
func New(mode string, h *Heuristic, l *LLM) (Classifier, error) {
	switch mode {
	case ModeHeuristic:
		if h == nil {
			return nil, eris.New("classify: heuristic mode requires term lists")
		}
		return h, nil
	case ModeLLM:
		if l == nil {
			return nil, eris.New("classify: llm mode requires an anthropic client")
		}
		return l, nil
	case ModeChain, "":
		if h == nil || l == nil {
			return nil, eris.New("classify: chain mode requires term lists and an anthropic client")
		}
		return NewChain(h, l), nil
	default:
		return nil, eris.Errorf("classify: unknown mode %q", mode)
	}
}

func observe(name string, res model.ClassifyResult) model.ClassifyResult {
	outcome := "rejected"
	switch {
	case res.Relevant:
		outcome = "accepted"
	case res.Undecided:
		outcome = "undecided"
	}
	metrics.ClassifiedTotal.WithLabelValues(name, outcome).Inc()
	return res
}
