package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/db"
	"github.com/sells-group/autotrans-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return eris.Wrap(db.Migrate(ctx, s.pool), "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) PutIfAbsent(ctx context.Context, doc model.StoredDocument) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (id) DO NOTHING`,
		doc.ID, string(doc.Source), doc.Title, doc.URL, doc.PublishedAt, doc.RawSummary,
		doc.Author, doc.ImageURL, string(doc.Language), doc.ExternalID, string(doc.Kind),
		doc.AIRelevant, doc.AIKind, doc.AIHeadline, doc.AISummary, doc.AIReason,
		doc.SearchQueryUsed, doc.CollectedAt.UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: put document %s", doc.ID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) QueryByPartition(ctx context.Context, kind model.Kind, lang model.Language, limit int, cur string) ([]model.StoredDocument, string, error) {
	limit = normalizeLimit(limit)
	after, err := decodeCursor(cur)
	if err != nil {
		return nil, "", err
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE kind = $1 AND language = $2`
	args := []any{string(kind), string(lang)}
	argIdx := 3
	if after != nil {
		query += fmt.Sprintf(` AND (published_at, id) < ($%d, $%d)`, argIdx, argIdx+1)
		args = append(args, after.PublishedAt, after.ID)
		argIdx += 2
	}
	query += fmt.Sprintf(` ORDER BY published_at DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	docs, err := s.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, "", eris.Wrap(err, "postgres: query partition")
	}
	docs, next := page(docs, limit)
	return docs, next, nil
}

func (s *PostgresStore) ScanAll(ctx context.Context, fn func(model.StoredDocument) error) error {
	last := ""
	for {
		docs, err := s.queryDocuments(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id > $1 ORDER BY id LIMIT $2`,
			last, scanBatchSize,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: scan documents")
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

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.StoredDocument, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanPostgresDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return &d, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete document %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Wipe(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: wipe documents")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count documents")
}

func (s *PostgresStore) CountByPartition(ctx context.Context) (map[Partition]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT kind, language, COUNT(*) FROM documents GROUP BY kind, language`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count partitions")
	}
	defer rows.Close()

	out := make(map[Partition]int64)
	for rows.Next() {
		var kind, lang string
		var n int64
		if err := rows.Scan(&kind, &lang, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan partition count")
		}
		out[Partition{Kind: model.Kind(kind), Language: model.Language(lang)}] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count partitions iterate")
}

func (s *PostgresStore) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM documents`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: known ids")
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan id")
		}
		ids[id] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "postgres: known ids iterate")
}

func (s *PostgresStore) queryDocuments(ctx context.Context, query string, args ...any) ([]model.StoredDocument, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.StoredDocument
	for rows.Next() {
		d, err := scanPostgresDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanPostgresDocument(row scannable) (model.StoredDocument, error) {
	var d model.StoredDocument
	var source, lang, kind string
	var collected time.Time
	err := row.Scan(&d.ID, &source, &d.Title, &d.URL, &d.PublishedAt, &d.RawSummary,
		&d.Author, &d.ImageURL, &lang, &d.ExternalID, &kind, &d.AIRelevant, &d.AIKind,
		&d.AIHeadline, &d.AISummary, &d.AIReason, &d.SearchQueryUsed, &collected)
	if err != nil {
		return d, err
	}
	d.Source = model.Source(source)
	d.Language = model.Language(lang)
	d.Kind = model.Kind(kind)
	d.CollectedAt = collected.UTC()
	return d, nil
}
