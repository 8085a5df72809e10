// Package vectorstore keeps embedded section chunks in a Redis search index.
package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/redis/rueidis"
	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/model"
)

// Store is the vector store contract used by the indexer.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error
}

// Config holds connection and index settings.
type Config struct {
	Addr       string
	Password   string
	Index      string
	Prefix     string
	Dimensions int
}

// Hash fields written for every chunk. Payload keys are written alongside.
const (
	fieldEmbedding = "embedding"
	fieldParentID  = "parent_id"
	fieldSection   = "section"
	fieldLanguage  = "language"
	fieldWeight    = "weight"
	fieldTitle     = "title"
	fieldText      = "text"
)

// RedisStore implements Store on Redis Stack / Redis 8 hashes with an
// FT vector index.
type RedisStore struct {
	client rueidis.Client
	cfg    Config
}

// NewRedis connects to Redis.
func NewRedis(cfg Config) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, eris.New("vectorstore: addr is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: connect")
	}
	return newWithClient(client, cfg), nil
}

func newWithClient(client rueidis.Client, cfg Config) *RedisStore {
	if cfg.Index == "" {
		cfg.Index = "autotrans_chunks"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "chunk:"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	return &RedisStore{client: client, cfg: cfg}
}

// Close releases the connection.
func (s *RedisStore) Close() {
	s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.cfg.Prefix + id
}

// EnsureIndex creates the search index if it does not exist.
func (s *RedisStore) EnsureIndex(ctx context.Context) error {
	args := []string{
		s.cfg.Index, "ON", "HASH", "PREFIX", "1", s.cfg.Prefix,
		"SCHEMA",
		fieldParentID, "TAG",
		fieldSection, "TAG",
		fieldLanguage, "TAG",
		fieldWeight, "NUMERIC",
		fieldTitle, "TEXT",
		fieldEmbedding, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.cfg.Dimensions),
		"DISTANCE_METRIC", "COSINE",
	}
	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return eris.Wrapf(err, "vectorstore: create index %s", s.cfg.Index)
	}
	return nil
}

// Exists reports whether a chunk with id is stored.
func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	cmd := s.client.B().Exists().Key(s.key(id)).Build()
	n, err := s.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, eris.Wrapf(err, "vectorstore: exists %s", id)
	}
	return n > 0, nil
}

// Upsert writes the vector and payload for id, replacing any fields already
// present.
func (s *RedisStore) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	if len(vector) != s.cfg.Dimensions {
		return eris.Errorf("vectorstore: vector has %d dimensions, index expects %d", len(vector), s.cfg.Dimensions)
	}
	cmd := s.client.B().Hset().Key(s.key(id)).FieldValue().FieldValue(fieldEmbedding, vectorToBytes(vector))
	for k, v := range payload {
		if k == fieldEmbedding {
			continue
		}
		cmd = cmd.FieldValue(k, formatValue(v))
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return eris.Wrapf(err, "vectorstore: upsert %s", id)
	}
	return nil
}

// Hit is one nearest-neighbour match.
type Hit struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"` // cosine distance; lower is closer
	ParentID string         `json:"parent_id"`
	Section  model.Section  `json:"section"`
	Language model.Language `json:"language"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
}

var returnFields = []string{"score", fieldParentID, fieldSection, fieldLanguage, fieldTitle, fieldText}

// Search returns the k chunks nearest to vector, optionally restricted to
// one language.
func (s *RedisStore) Search(ctx context.Context, vector []float32, k int, lang model.Language) ([]Hit, error) {
	if k <= 0 {
		return nil, eris.New("vectorstore: k must be positive")
	}
	filter := "*"
	if lang != "" && lang != model.LangAll {
		filter = fmt.Sprintf("(@%s:{%s})", fieldLanguage, lang)
	}
	query := fmt.Sprintf("%s=>[KNN %d @%s $BLOB AS score]", filter, k, fieldEmbedding)

	args := []string{s.cfg.Index, query, "SORTBY", "score", "RETURN", strconv.Itoa(len(returnFields))}
	args = append(args, returnFields...)
	args = append(args, "LIMIT", "0", strconv.Itoa(k), "PARAMS", "2", "BLOB", vectorToBytes(vector), "DIALECT", "2")

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: search")
	}
	return parseHits(raw, s.cfg.Prefix)
}

// parseHits decodes the RESP2 FT.SEARCH reply: a total count followed by
// key / field-list pairs.
func parseHits(raw []rueidis.RedisMessage, prefix string) ([]Hit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var hits []Hit
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			return nil, eris.Wrap(err, "vectorstore: parse key")
		}
		kv, err := raw[i+1].AsStrSlice()
		if err != nil {
			return nil, eris.Wrapf(err, "vectorstore: parse fields of %s", key)
		}
		h := Hit{ID: strings.TrimPrefix(key, prefix)}
		for j := 0; j+1 < len(kv); j += 2 {
			switch v := kv[j+1]; kv[j] {
			case "score":
				h.Score, _ = strconv.ParseFloat(v, 64)
			case fieldParentID:
				h.ParentID = v
			case fieldSection:
				h.Section = model.Section(v)
			case fieldLanguage:
				h.Language = model.Language(v)
			case fieldTitle:
				h.Title = v
			case fieldText:
				h.Text = v
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		if rv := reflect.ValueOf(t); rv.Kind() == reflect.String {
			return rv.String()
		}
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// vectorToBytes packs v as little-endian FLOAT32, the layout the index's
// VECTOR field expects.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
