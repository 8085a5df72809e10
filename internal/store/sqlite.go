package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/autotrans-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	title             TEXT NOT NULL,
	url               TEXT NOT NULL,
	published_at      TEXT NOT NULL,
	raw_summary       TEXT NOT NULL DEFAULT '',
	author            TEXT NOT NULL DEFAULT '',
	image_url         TEXT NOT NULL DEFAULT '',
	language          TEXT NOT NULL,
	external_id       TEXT NOT NULL DEFAULT '',
	kind              TEXT NOT NULL,
	ai_relevant       INTEGER NOT NULL DEFAULT 0,
	ai_kind           TEXT NOT NULL DEFAULT '',
	ai_headline       TEXT NOT NULL DEFAULT '',
	ai_summary        TEXT NOT NULL DEFAULT '',
	ai_reason         TEXT NOT NULL DEFAULT '',
	search_query_used TEXT NOT NULL DEFAULT '',
	collected_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_partition
	ON documents(kind, language, published_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutIfAbsent(ctx context.Context, doc model.StoredDocument) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, string(doc.Source), doc.Title, doc.URL, doc.PublishedAt, doc.RawSummary,
		doc.Author, doc.ImageURL, string(doc.Language), doc.ExternalID, string(doc.Kind),
		doc.AIRelevant, doc.AIKind, doc.AIHeadline, doc.AISummary, doc.AIReason,
		doc.SearchQueryUsed, doc.CollectedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: put document %s", doc.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) QueryByPartition(ctx context.Context, kind model.Kind, lang model.Language, limit int, cur string) ([]model.StoredDocument, string, error) {
	limit = normalizeLimit(limit)
	after, err := decodeCursor(cur)
	if err != nil {
		return nil, "", err
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE kind = ? AND language = ?`
	args := []any{string(kind), string(lang)}
	if after != nil {
		query += ` AND (published_at < ? OR (published_at = ? AND id < ?))`
		args = append(args, after.PublishedAt, after.PublishedAt, after.ID)
	}
	query += ` ORDER BY published_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	docs, err := s.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, "", eris.Wrap(err, "sqlite: query partition")
	}
	docs, next := page(docs, limit)
	return docs, next, nil
}

func (s *SQLiteStore) ScanAll(ctx context.Context, fn func(model.StoredDocument) error) error {
	last := ""
	for {
		docs, err := s.queryDocuments(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id > ? ORDER BY id LIMIT ?`,
			last, scanBatchSize,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: scan documents")
		}
		for _, d := range docs {
			if err := fn(d); err != nil {
				return err
			}
		}
		if len(docs) < scanBatchSize {
			return nil
		}
		last = docs[len(docs)-1].ID
	}
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.StoredDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanSQLiteDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return &d, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete document %s", id)
	}
	n, err := res.RowsAffected()
	return n > 0, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Wipe(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: wipe documents")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count documents")
}

func (s *SQLiteStore) CountByPartition(ctx context.Context) (map[Partition]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, language, COUNT(*) FROM documents GROUP BY kind, language`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count partitions")
	}
	defer rows.Close()

	out := make(map[Partition]int64)
	for rows.Next() {
		var kind, lang string
		var n int64
		if err := rows.Scan(&kind, &lang, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan partition count")
		}
		out[Partition{Kind: model.Kind(kind), Language: model.Language(lang)}] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count partitions iterate")
}

func (s *SQLiteStore) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: known ids")
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		ids[id] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: known ids iterate")
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]model.StoredDocument, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.StoredDocument
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanSQLiteDocument(row scannable) (model.StoredDocument, error) {
	var d model.StoredDocument
	var source, lang, kind, collected string
	err := row.Scan(&d.ID, &source, &d.Title, &d.URL, &d.PublishedAt, &d.RawSummary,
		&d.Author, &d.ImageURL, &lang, &d.ExternalID, &kind, &d.AIRelevant, &d.AIKind,
		&d.AIHeadline, &d.AISummary, &d.AIReason, &d.SearchQueryUsed, &collected)
	if err != nil {
		return d, err
	}
	d.Source = model.Source(source)
	d.Language = model.Language(lang)
	d.Kind = model.Kind(kind)
	if t, perr := time.Parse(time.RFC3339Nano, collected); perr == nil {
		d.CollectedAt = t
	}
	return d, nil
}
