// Package store persists classified documents with URL-level deduplication.
package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/db"
	"github.com/sells-group/autotrans-cli/internal/model"
)

// Store is the document store contract shared by the SQLite and Postgres backends.
type Store interface {
	// PutIfAbsent inserts doc unless a document with the same ID exists.
	// It reports true when the row was inserted. A duplicate is not an error.
	PutIfAbsent(ctx context.Context, doc model.StoredDocument) (bool, error)

	// QueryByPartition lists one kind/language partition newest first. An
	// empty next cursor means the partition is exhausted.
	QueryByPartition(ctx context.Context, kind model.Kind, lang model.Language, limit int, cursor string) ([]model.StoredDocument, string, error)

	// ScanAll calls fn for every stored document. fn may delete documents.
	ScanAll(ctx context.Context, fn func(model.StoredDocument) error) error

	// Get returns nil and no error when the document does not exist.
	Get(ctx context.Context, id string) (*model.StoredDocument, error)
	Delete(ctx context.Context, id string) (bool, error)
	Wipe(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountByPartition(ctx context.Context) (map[Partition]int64, error)
	KnownIDs(ctx context.Context) (map[string]struct{}, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Partition is a kind × language pair.
type Partition struct {
	Kind     model.Kind
	Language model.Language
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the backend selected by driver.
func Open(ctx context.Context, driver, dsn string, poolCfg *db.PoolConfig) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		return NewSQLite(dsn)
	case DriverPostgres, "pg":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

const (
	defaultPageSize = 20
	scanBatchSize   = 500
)

const documentColumns = `id, source, title, url, published_at, raw_summary, author, image_url,
	language, external_id, kind, ai_relevant, ai_kind, ai_headline, ai_summary, ai_reason,
	search_query_used, collected_at`

type cursor struct {
	PublishedAt string `json:"published_at"`
	ID          string `json:"id"`
}

func encodeCursor(d model.StoredDocument) string {
	b, _ := json.Marshal(cursor{PublishedAt: d.PublishedAt, ID: d.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (*cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode cursor")
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal cursor")
	}
	if c.PublishedAt == "" || c.ID == "" {
		return nil, eris.New("store: incomplete cursor")
	}
	return &c, nil
}

// page trims the over-fetched row and derives the next cursor.
func page(docs []model.StoredDocument, limit int) ([]model.StoredDocument, string) {
	if len(docs) <= limit {
		return docs, ""
	}
	docs = docs[:limit]
	return docs, encodeCursor(docs[len(docs)-1])
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return limit
}

type scannable interface {
	Scan(dest ...any) error
}
