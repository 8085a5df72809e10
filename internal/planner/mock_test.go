package planner

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/classify"
	"github.com/sells-group/autotrans-cli/internal/model"
)

type memStore struct {
	mu       sync.Mutex
	docs     map[string]model.StoredDocument
	known    map[string]struct{}
	knownErr error
	putErr   error
	puts     int
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]model.StoredDocument)}
}

func (s *memStore) PutIfAbsent(_ context.Context, doc model.StoredDocument) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return false, s.putErr
	}
	if _, ok := s.docs[doc.ID]; ok {
		return false, nil
	}
	s.docs[doc.ID] = doc
	return true, nil
}

func (s *memStore) KnownIDs(_ context.Context) (map[string]struct{}, error) {
	if s.knownErr != nil {
		return nil, s.knownErr
	}
	out := make(map[string]struct{}, len(s.known))
	for id := range s.known {
		out[id] = struct{}{}
	}
	return out, nil
}

// scriptedPlanner returns batches in order and records each request.
type scriptedPlanner struct {
	batches  [][]PlannedQuery
	err      error
	requests []PlanRequest
}

func (p *scriptedPlanner) Plan(_ context.Context, req PlanRequest) ([]PlannedQuery, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	i := len(p.requests) - 1
	if i >= len(p.batches) {
		return nil, eris.New("no more batches")
	}
	return p.batches[i], nil
}

// mapHarvester returns canned candidates per query.
type mapHarvester struct {
	name    string
	results map[string][]model.Candidate
	queries []string
}

func (h *mapHarvester) Name() string { return h.name }

func (h *mapHarvester) Search(_ context.Context, query string, lang model.Language) []model.Candidate {
	h.queries = append(h.queries, query)
	out := make([]model.Candidate, 0, len(h.results[query]))
	for _, c := range h.results[query] {
		c.Language = lang
		out = append(out, c)
	}
	return out
}

// titleClassifier accepts candidates whose title contains "transplant" or
// "移植".
type titleClassifier struct {
	calls int
}

func (c *titleClassifier) Name() string { return "title" }

func (c *titleClassifier) Classify(_ context.Context, in classify.Input) model.ClassifyResult {
	c.calls++
	t := strings.ToLower(in.Title)
	if strings.Contains(t, "transplant") || strings.Contains(t, "移植") {
		return model.ClassifyResult{Relevant: true, Kind: model.KindResearch, Headline: "h:" + in.Title}
	}
	return model.Rejected("off topic")
}
