// Package model defines the records that move between harvesters, the
// classifier, the planner and the stores.
package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Kind is the closed classification taxonomy of a stored document.
type Kind string

const (
	KindResearch Kind = "research"
	KindCase     Kind = "case"
	KindNews     Kind = "news"
	KindVideo    Kind = "video"
	KindProduct  Kind = "product"
	KindMarket   Kind = "market"
)

// AllKinds returns every valid Kind in display order.
func AllKinds() []Kind {
	return []Kind{KindResearch, KindCase, KindNews, KindVideo, KindProduct, KindMarket}
}

// ParseKind validates s against the taxonomy. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range AllKinds() {
		if k == valid {
			return k, nil
		}
	}
	return "", eris.Errorf("model: unknown kind %q", s)
}

// Language is a target content language.
type Language string

const (
	LangJA Language = "ja"
	LangEN Language = "en"

	// LangAll is only meaningful for read queries that merge languages.
	LangAll Language = "all"
)

// AllLanguages returns every concrete target language.
func AllLanguages() []Language {
	return []Language{LangJA, LangEN}
}

// ParseLanguage validates s. LangAll is accepted only when allowAll is set.
func ParseLanguage(s string, allowAll bool) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LangJA, LangEN:
		return l, nil
	case LangAll:
		if allowAll {
			return l, nil
		}
	}
	return "", eris.Errorf("model: unknown language %q", s)
}

// Source identifies the harvester that produced a candidate.
type Source string

const (
	SourceGoogleNews Source = "google_news"
	SourceWebSearch  Source = "web_search"
	SourcePubMed     Source = "pubmed"
	SourceYouTubeRSS Source = "youtube_rss"
	SourceYouTubeAPI Source = "youtube_api"
)

// IsVideo reports whether the source only yields video content.
func (s Source) IsVideo() bool {
	return s == SourceYouTubeRSS || s == SourceYouTubeAPI
}

// Candidate is an unclassified, unpersisted document found by a harvester.
type Candidate struct {
	Source      Source   `json:"source"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	PublishedAt string   `json:"published_at"`
	RawSummary  string   `json:"raw_summary,omitempty"`
	Author      string   `json:"author,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Language    Language `json:"language"`
	ExternalID  string   `json:"external_id,omitempty"` // PMID or video ID
}

// ID returns the deduplication key of the candidate.
func (c Candidate) ID() string {
	return DocumentID(c.URL)
}

// ClassifyResult is the outcome of a relevance classification.
type ClassifyResult struct {
	Relevant bool   `json:"relevant"`
	Kind     Kind   `json:"kind,omitempty"`
	Headline string `json:"headline,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// Undecided is set when no verdict was reached (API, parse or budget
	// failure). Relevant is false so inserts fail closed, but the document
	// was not judged irrelevant.
	Undecided bool `json:"undecided,omitempty"`
}

// Rejected builds a non-relevant result with the given reason.
func Rejected(reason string) ClassifyResult {
	return ClassifyResult{Relevant: false, Reason: reason}
}

// Undecided builds a non-relevant result that carries no verdict.
func Undecided(reason string) ClassifyResult {
	return ClassifyResult{Relevant: false, Reason: reason, Undecided: true}
}

// StoredDocument is a classified, persisted, deduplicated document.
type StoredDocument struct {
	ID              string    `json:"id"`
	Source          Source    `json:"source"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	PublishedAt     string    `json:"published_at"`
	RawSummary      string    `json:"raw_summary,omitempty"`
	Author          string    `json:"author,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	Language        Language  `json:"language"`
	ExternalID      string    `json:"external_id,omitempty"`
	Kind            Kind      `json:"kind"`
	AIRelevant      bool      `json:"ai_relevant"`
	AIKind          string    `json:"ai_kind,omitempty"`
	AIHeadline      string    `json:"ai_headline,omitempty"`
	AISummary       string    `json:"ai_summary,omitempty"`
	AIReason        string    `json:"ai_reason,omitempty"`
	SearchQueryUsed string    `json:"search_query_used,omitempty"`
	CollectedAt     time.Time `json:"collected_at"`
}

// NewStoredDocument combines a candidate with its classification. The publish
// time is normalized to a UTC instant, falling back to collectedAt.
func NewStoredDocument(c Candidate, res ClassifyResult, query string, collectedAt time.Time) StoredDocument {
	kind := res.Kind
	if kind == "" {
		kind = KindResearch
	}
	return StoredDocument{
		ID:              c.ID(),
		Source:          c.Source,
		Title:           strings.TrimSpace(c.Title),
		URL:             c.URL,
		PublishedAt:     NormalizePublishedAt(c.PublishedAt, collectedAt),
		RawSummary:      c.RawSummary,
		Author:          c.Author,
		ImageURL:        c.ImageURL,
		Language:        c.Language,
		ExternalID:      c.ExternalID,
		Kind:            kind,
		AIRelevant:      res.Relevant,
		AIKind:          string(res.Kind),
		AIHeadline:      res.Headline,
		AISummary:       res.Summary,
		AIReason:        res.Reason,
		SearchQueryUsed: query,
		CollectedAt:     collectedAt.UTC(),
	}
}

// Headline returns the LLM headline when present, else the raw title.
func (d StoredDocument) Headline() string {
	if h := strings.TrimSpace(d.AIHeadline); h != "" {
		return h
	}
	return d.Title
}

// PublishedDate returns the date part (YYYY-MM-DD) of PublishedAt.
func (d StoredDocument) PublishedDate() string {
	if len(d.PublishedAt) >= 10 {
		return d.PublishedAt[:10]
	}
	return d.PublishedAt
}

// IsLiterature reports whether the document came from the literature source.
func (d StoredDocument) IsLiterature() bool {
	return d.Source == SourcePubMed
}

// SearchHistoryEntry records one planned query, how many candidates it
// produced and how many of those were newly stored.
type SearchHistoryEntry struct {
	Iteration   int      `json:"iteration"`
	Language    Language `json:"language"`
	Query       string   `json:"query"`
	Rationale   string   `json:"rationale,omitempty"`
	ResultCount int      `json:"result_count"`
	Accepted    int      `json:"accepted"`
	Fallback    bool     `json:"fallback,omitempty"`
}
