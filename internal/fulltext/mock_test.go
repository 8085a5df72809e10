package fulltext

import (
	"context"
	"errors"
	"sync"

	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/pkg/pubmed"
)

type fakePubMed struct {
	pmcid   string
	pmcErr  error
	full    *pubmed.FullText
	fullErr error
	lookups []string
}

func (f *fakePubMed) Search(context.Context, string, int) ([]string, error) {
	return nil, errors.New("not used")
}

func (f *fakePubMed) Fetch(context.Context, []string) ([]pubmed.Article, error) {
	return nil, errors.New("not used")
}

func (f *fakePubMed) PMCID(_ context.Context, pmid string) (string, error) {
	f.lookups = append(f.lookups, pmid)
	return f.pmcid, f.pmcErr
}

func (f *fakePubMed) FullText(context.Context, string) (*pubmed.FullText, error) {
	return f.full, f.fullErr
}

type upsert struct {
	vector  []float32
	payload map[string]any
}

type fakeVectors struct {
	mu        sync.Mutex
	existing  map[string]bool
	upserts   map[string]upsert
	existsErr error
	upsertErr error
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{existing: map[string]bool{}, upserts: map[string]upsert{}}
}

func (f *fakeVectors) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, up := f.upserts[id]
	return f.existing[id] || up, nil
}

func (f *fakeVectors) Upsert(_ context.Context, id string, vector []float32, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts[id] = upsert{vector: vector, payload: payload}
	return nil
}

func (f *fakeVectors) get(pmid string, s model.Section, lang model.Language) (upsert, bool) {
	u, ok := f.upserts[model.ChunkID(pmid, s, lang)]
	return u, ok
}
