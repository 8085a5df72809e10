package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range AllKinds() {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind("  Case ")
	require.NoError(t, err)
	assert.Equal(t, KindCase, got)

	_, err = ParseKind("blog")
	assert.Error(t, err)
	_, err = ParseKind("")
	assert.Error(t, err)
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	got, err := ParseLanguage("JA", false)
	require.NoError(t, err)
	assert.Equal(t, LangJA, got)

	_, err = ParseLanguage("all", false)
	assert.Error(t, err, "all is read-only")

	got, err = ParseLanguage("all", true)
	require.NoError(t, err)
	assert.Equal(t, LangAll, got)

	_, err = ParseLanguage("fr", true)
	assert.Error(t, err)
}

func TestSourceIsVideo(t *testing.T) {
	t.Parallel()
	assert.True(t, SourceYouTubeRSS.IsVideo())
	assert.True(t, SourceYouTubeAPI.IsVideo())
	assert.False(t, SourcePubMed.IsVideo())
	assert.False(t, SourceGoogleNews.IsVideo())
}

func TestNewStoredDocument(t *testing.T) {
	t.Parallel()

	collected := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	c := Candidate{
		Source:      SourceGoogleNews,
		Title:       "  Tooth autotransplantation outcomes ",
		URL:         "https://Example.com/a?utm_source=x",
		PublishedAt: "Tue, 10 Jun 2025 08:00:00 GMT",
		Language:    LangEN,
	}
	res := ClassifyResult{Relevant: true, Kind: KindNews, Headline: "Outcomes", Summary: "s", Reason: "r"}

	doc := NewStoredDocument(c, res, "autotransplantation", collected)
	assert.Equal(t, DocumentID("https://example.com/a"), doc.ID)
	assert.Equal(t, "Tooth autotransplantation outcomes", doc.Title)
	assert.Equal(t, "2025-06-10T08:00:00Z", doc.PublishedAt)
	assert.Equal(t, KindNews, doc.Kind)
	assert.Equal(t, "news", doc.AIKind)
	assert.True(t, doc.AIRelevant)
	assert.Equal(t, "autotransplantation", doc.SearchQueryUsed)
	assert.Equal(t, collected, doc.CollectedAt)
	assert.Equal(t, "2025-06-10", doc.PublishedDate())
}

func TestNewStoredDocument_Defaults(t *testing.T) {
	t.Parallel()

	collected := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("JST", 9*3600))
	doc := NewStoredDocument(Candidate{URL: "https://a.example/x", PublishedAt: "garbage"}, ClassifyResult{Relevant: true}, "", collected)
	assert.Equal(t, KindResearch, doc.Kind)
	assert.Equal(t, "2025-01-01T18:04:05Z", doc.PublishedAt)
}

func TestStoredDocumentHeadline(t *testing.T) {
	t.Parallel()

	d := StoredDocument{Title: "raw"}
	assert.Equal(t, "raw", d.Headline())
	d.AIHeadline = "  "
	assert.Equal(t, "raw", d.Headline())
	d.AIHeadline = "ai"
	assert.Equal(t, "ai", d.Headline())
}

func TestRejected(t *testing.T) {
	t.Parallel()
	r := Rejected("deny term")
	assert.False(t, r.Relevant)
	assert.Equal(t, "deny term", r.Reason)
}
