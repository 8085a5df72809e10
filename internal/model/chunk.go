package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Section is a named structural unit of a literature document.
type Section string

const (
	SectionAbstract     Section = "abstract"
	SectionIntroduction Section = "introduction"
	SectionMethods      Section = "methods"
	SectionResults      Section = "results"
	SectionDiscussion   Section = "discussion"
	SectionConclusions  Section = "conclusions"
)

// AllSections returns every section in document order.
func AllSections() []Section {
	return []Section{
		SectionAbstract,
		SectionIntroduction,
		SectionMethods,
		SectionResults,
		SectionDiscussion,
		SectionConclusions,
	}
}

// Weight is the retrieval weight stored with a chunk of this section.
func (s Section) Weight() float64 {
	if s == SectionAbstract {
		return 1.0
	}
	return 0.8
}

// JapaneseName is the heading used for translated chunks.
func (s Section) JapaneseName() string {
	switch s {
	case SectionAbstract:
		return "アブストラクト"
	case SectionIntroduction:
		return "序論"
	case SectionMethods:
		return "材料と方法"
	case SectionResults:
		return "結果"
	case SectionDiscussion:
		return "考察"
	case SectionConclusions:
		return "結論"
	default:
		return string(s)
	}
}

// VectorChunk is one embedded, independently retrievable section instance.
type VectorChunk struct {
	ChunkID   string         `json:"chunk_id"`
	ParentID  string         `json:"parent_id"`
	Section   Section        `json:"section"`
	Language  Language       `json:"language"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"-"`
	Weight    float64        `json:"weight"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ChunkID derives the deterministic identity of a (parent, section, language)
// triple as a name-based UUID in the URL namespace.
func ChunkID(parentID string, section Section, lang Language) string {
	name := fmt.Sprintf("pubmed_%s_%s_%s", parentID, section, lang)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// PMIDFromURL extracts a PubMed identifier from a pubmed.ncbi.nlm.nih.gov URL.
func PMIDFromURL(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "pubmed.ncbi.nlm.nih.gov") {
		return "", eris.Errorf("model: not a pubmed url %q", rawURL)
	}
	trimmed := strings.TrimRight(rawURL, "/")
	id := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if id == "" {
		return "", eris.Errorf("model: empty pmid in %q", rawURL)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", eris.Errorf("model: non-numeric pmid %q", id)
		}
	}
	return id, nil
}

// PMID returns the document's PubMed ID from ExternalID or the URL.
func (d StoredDocument) PMID() (string, error) {
	if d.ExternalID != "" {
		return d.ExternalID, nil
	}
	return PMIDFromURL(d.URL)
}
