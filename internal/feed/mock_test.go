package feed

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/store"
)

// memQuerier pages pre-sorted partitions with an integer offset cursor.
type memQuerier struct {
	mu    sync.Mutex
	docs  map[store.Partition][]model.StoredDocument
	err   error
	calls int
}

func newMemQuerier(docs ...model.StoredDocument) *memQuerier {
	m := &memQuerier{docs: map[store.Partition][]model.StoredDocument{}}
	for _, d := range docs {
		p := store.Partition{Kind: d.Kind, Language: d.Language}
		m.docs[p] = append(m.docs[p], d)
	}
	for _, list := range m.docs {
		sort.SliceStable(list, func(i, j int) bool { return list[i].PublishedAt > list[j].PublishedAt })
	}
	return m
}

func (m *memQuerier) QueryByPartition(_ context.Context, kind model.Kind, lang model.Language, limit int, cursor string) ([]model.StoredDocument, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, "", m.err
	}
	if lang == model.LangAll {
		return nil, "", errors.New("partition queries take a concrete language")
	}
	list := m.docs[store.Partition{Kind: kind, Language: lang}]
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	if start >= len(list) {
		return nil, "", nil
	}
	end := min(start+limit, len(list))
	next := ""
	if end < len(list) {
		next = strconv.Itoa(end)
	}
	return list[start:end], next, nil
}
