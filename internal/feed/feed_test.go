package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/autotrans-cli/internal/model"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func doc(id string, lang model.Language, url, published string) model.StoredDocument {
	return model.StoredDocument{
		ID:          id,
		Source:      model.SourcePubMed,
		Title:       "title " + id,
		URL:         url,
		PublishedAt: published,
		Language:    lang,
		Kind:        model.KindResearch,
	}
}

func newTestService(q Querier) *Service {
	s := New(q)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 5},
		{-3, 5},
		{1, 1},
		{20, 20},
		{21, 20},
		{500, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLimit(tt.in), "limit %d", tt.in)
	}
}

func TestLatest_SingleLanguage(t *testing.T) {
	d1 := doc("a", model.LangJA, "https://example.jp/a", "2025-05-01T00:00:00Z")
	d2 := doc("b", model.LangJA, "https://example.jp/b", "2025-05-03T09:30:00Z")
	d2.AIHeadline = "移植歯の10年生存率"
	q := newMemQuerier(d1, d2, doc("c", model.LangEN, "https://example.com/c", "2025-05-04T00:00:00Z"))

	resp, err := newTestService(q).Latest(context.Background(), model.KindResearch, model.LangJA, 0)
	require.NoError(t, err)
	assert.Equal(t, model.KindResearch, resp.Kind)
	assert.Equal(t, model.LangJA, resp.Lang)
	assert.Equal(t, fixedNow, resp.UpdatedAt)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, Item{
		Headline:    "移植歯の10年生存率",
		URL:         "https://example.jp/b",
		PublishedAt: "2025-05-03",
		Kind:        model.KindResearch,
		Language:    model.LangJA,
		Source:      model.SourcePubMed,
		sortKey:     "2025-05-03T09:30:00Z",
	}, resp.Items[0])
	assert.Equal(t, "title a", resp.Items[1].Headline)
}

func TestLatest_DropsIncompleteAndPagesOn(t *testing.T) {
	noTitle := doc("x", model.LangEN, "https://example.com/x", "2025-05-09T00:00:00Z")
	noTitle.Title = "  "
	noURL := doc("y", model.LangEN, "", "2025-05-08T00:00:00Z")
	q := newMemQuerier(
		noTitle, noURL,
		doc("a", model.LangEN, "https://example.com/a", "2025-05-02T00:00:00Z"),
		doc("b", model.LangEN, "https://example.com/b", "2025-05-01T00:00:00Z"),
	)

	resp, err := newTestService(q).Latest(context.Background(), model.KindResearch, model.LangEN, 2)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "https://example.com/a", resp.Items[0].URL)
	assert.Equal(t, "https://example.com/b", resp.Items[1].URL)
	assert.Equal(t, 2, q.calls)
}

func TestLatest_AllMergesAndDedupes(t *testing.T) {
	q := newMemQuerier(
		doc("ja1", model.LangJA, "https://Example.com/shared/?utm_source=x", "2025-05-01T00:00:00Z"),
		doc("ja2", model.LangJA, "https://example.jp/only-ja", "2025-05-05T00:00:00Z"),
		doc("en1", model.LangEN, "https://example.com/shared", "2025-05-03T00:00:00Z"),
		doc("en2", model.LangEN, "https://example.com/only-en", "2025-04-01T00:00:00Z"),
	)

	resp, err := newTestService(q).Latest(context.Background(), model.KindResearch, model.LangAll, 10)
	require.NoError(t, err)
	assert.Equal(t, model.LangAll, resp.Lang)
	require.Equal(t, 3, resp.Count)

	var urls []string
	for _, it := range resp.Items {
		urls = append(urls, it.URL)
	}
	assert.Equal(t, []string{
		"https://example.jp/only-ja",
		"https://example.com/shared",
		"https://example.com/only-en",
	}, urls)
	assert.Equal(t, model.LangEN, resp.Items[1].Language, "newest copy of a shared url wins")
}

func TestLatest_AllTruncates(t *testing.T) {
	q := newMemQuerier(
		doc("ja1", model.LangJA, "https://example.jp/1", "2025-05-01T00:00:00Z"),
		doc("ja2", model.LangJA, "https://example.jp/2", "2025-05-04T00:00:00Z"),
		doc("en1", model.LangEN, "https://example.com/1", "2025-05-03T00:00:00Z"),
	)

	resp, err := newTestService(q).Latest(context.Background(), model.KindResearch, model.LangAll, 2)
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "2025-05-04", resp.Items[0].PublishedAt)
	assert.Equal(t, "2025-05-03", resp.Items[1].PublishedAt)
}

func TestLatest_Empty(t *testing.T) {
	resp, err := newTestService(newMemQuerier()).Latest(context.Background(), model.KindVideo, model.LangEN, 5)
	require.NoError(t, err)
	assert.Zero(t, resp.Count)
	assert.NotNil(t, resp.Items)
}

func TestLatest_StoreError(t *testing.T) {
	q := newMemQuerier()
	q.err = errors.New("table missing")

	_, err := newTestService(q).Latest(context.Background(), model.KindResearch, model.LangAll, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table missing")
}

func TestHandleLatest(t *testing.T) {
	q := newMemQuerier(
		doc("a", model.LangJA, "https://example.jp/a", "2025-05-01T00:00:00Z"),
		doc("b", model.LangEN, "https://example.com/b", "2025-05-02T00:00:00Z"),
	)
	srv := httptest.NewServer(NewRouter(newTestService(q), RouterOptions{}))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/latest")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var body struct {
		Kind      string `json:"kind"`
		Lang      string `json:"lang"`
		Count     int    `json:"count"`
		UpdatedAt string `json:"updated_at"`
		Items     []struct {
			Headline    string `json:"headline"`
			URL         string `json:"url"`
			PublishedAt string `json:"published_at"`
			Language    string `json:"language"`
		} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "research", body.Kind)
	assert.Equal(t, "ja", body.Lang)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "2025-06-01T12:00:00Z", body.UpdatedAt)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "2025-05-01", body.Items[0].PublishedAt)
}

func TestHandleLatest_BadParams(t *testing.T) {
	router := NewRouter(newTestService(newMemQuerier()), RouterOptions{})
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"unknown kind", "?kind=gossip", http.StatusBadRequest},
		{"unknown lang", "?lang=fr", http.StatusBadRequest},
		{"non-numeric limit", "?limit=ten", http.StatusBadRequest},
		{"all and clamp", "?lang=all&limit=99&kind=VIDEO", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/latest"+tt.query, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleLatest_StoreError(t *testing.T) {
	q := newMemQuerier()
	q.err = errors.New("down")
	rec := httptest.NewRecorder()
	NewRouter(newTestService(q), RouterOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/latest", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"query failed"}`, rec.Body.String())
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := NewRouter(newTestService(newMemQuerier()), RouterOptions{CORSOrigins: []string{"https://clinic.example"}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autotrans_http_requests_total")
}

func TestRouter_CORS(t *testing.T) {
	router := NewRouter(newTestService(newMemQuerier()), RouterOptions{CORSOrigins: []string{"https://clinic.example"}})

	req := httptest.NewRequest(http.MethodGet, "/api/latest", nil)
	req.Header.Set("Origin", "https://clinic.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/latest", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
