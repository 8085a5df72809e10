// Package fulltext splits literature into sections, translates them and
// stores their embeddings for semantic retrieval.
package fulltext

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/cost"
	"github.com/sells-group/autotrans-cli/internal/metrics"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/resilience"
	"github.com/sells-group/autotrans-cli/internal/scrape"
	"github.com/sells-group/autotrans-cli/internal/vectorstore"
	"github.com/sells-group/autotrans-cli/pkg/openai"
	"github.com/sells-group/autotrans-cli/pkg/pubmed"
)

// Config tunes the indexer.
type Config struct {
	Languages        []model.Language
	MinSectionChars  int
	TranslationModel string
	EmbeddingModel   string
	SectionDelay     time.Duration
	PaperDelay       time.Duration
}

// Stats counts chunk outcomes.
type Stats struct {
	Papers   int     `json:"papers"`
	FullText int     `json:"fulltext"`
	Upserted int     `json:"upserted"`
	Existing int     `json:"existing"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"` // documents without a usable PMID
	CostUSD  float64 `json:"cost_usd"`
}

func (s *Stats) add(o Stats) {
	s.Papers += o.Papers
	s.FullText += o.FullText
	s.Upserted += o.Upserted
	s.Existing += o.Existing
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.CostUSD += o.CostUSD
}

// Indexer turns literature documents into vector chunks. It is not safe
// for concurrent use.
type Indexer struct {
	lit     pubmed.Client
	ai      openai.Client
	vectors vectorstore.Store
	calc    *cost.Calculator
	cfg     Config

	spent float64
}

// New creates an Indexer. calc may be nil.
func New(lit pubmed.Client, ai openai.Client, vectors vectorstore.Store, calc *cost.Calculator, cfg Config) *Indexer {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []model.Language{model.LangEN, model.LangJA}
	}
	if cfg.MinSectionChars <= 0 {
		cfg.MinSectionChars = 50
	}
	if cfg.TranslationModel == "" {
		cfg.TranslationModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	return &Indexer{lit: lit, ai: ai, vectors: vectors, calc: calc, cfg: cfg}
}

// IndexAll indexes every literature document in docs, pausing between
// papers. Non-literature documents are ignored.
func (ix *Indexer) IndexAll(ctx context.Context, docs []model.StoredDocument) Stats {
	var total Stats
	first := true
	for _, d := range docs {
		if !d.IsLiterature() {
			continue
		}
		if !first {
			if err := resilience.Pause(ctx, ix.cfg.PaperDelay); err != nil {
				break
			}
		}
		first = false
		total.add(ix.IndexDocument(ctx, d))
	}
	zap.L().Info("fulltext: indexing complete",
		zap.Int("papers", total.Papers),
		zap.Int("fulltext", total.FullText),
		zap.Int("upserted", total.Upserted),
		zap.Int("existing", total.Existing),
		zap.Int("failed", total.Failed),
		zap.Int("skipped", total.Skipped),
		zap.Float64("cost_usd", total.CostUSD),
	)
	return total
}

// IndexDocument indexes one literature document. Every failure is local to
// a section and language and is counted, not returned.
func (ix *Indexer) IndexDocument(ctx context.Context, doc model.StoredDocument) (st Stats) {
	ix.spent = 0
	defer func() { st.CostUSD = ix.spent }()

	log := zap.L().With(zap.String("doc_id", doc.ID))
	pmid, err := doc.PMID()
	if err != nil {
		log.Warn("fulltext: no pmid, skipping", zap.Error(err))
		st.Skipped++
		return st
	}
	log = log.With(zap.String("pmid", pmid))
	st.Papers++

	sections := map[model.Section]string{model.SectionAbstract: doc.RawSummary}
	pmcid, fullText := ix.fetchFullText(ctx, log, pmid)
	if fullText != nil {
		st.FullText++
		for s, text := range fullText.Sections {
			if strings.TrimSpace(text) != "" {
				sections[s] = text
			}
		}
	}

	p := &paper{doc: doc, pmid: pmid, pmcid: pmcid, fullText: fullText != nil}
	for _, section := range model.AllSections() {
		text := strings.TrimSpace(sections[section])
		if utf8.RuneCountInString(text) < ix.cfg.MinSectionChars {
			continue
		}
		for _, lang := range ix.cfg.Languages {
			if ctx.Err() != nil {
				return st
			}
			switch ix.indexChunk(ctx, p, section, lang, text) {
			case outcomeUpserted:
				st.Upserted++
			case outcomeExists:
				st.Existing++
			case outcomeFailed:
				st.Failed++
			}
			if err := resilience.Pause(ctx, ix.cfg.SectionDelay); err != nil {
				return st
			}
		}
	}

	log.Info("fulltext: paper indexed",
		zap.Bool("fulltext", p.fullText),
		zap.Int("upserted", st.Upserted),
		zap.Int("existing", st.Existing),
		zap.Int("failed", st.Failed),
	)
	return st
}

// fetchFullText resolves the PMC copy of a paper. Any failure degrades to
// abstract-only.
func (ix *Indexer) fetchFullText(ctx context.Context, log *zap.Logger, pmid string) (string, *pubmed.FullText) {
	pmcid, err := ix.lit.PMCID(ctx, pmid)
	if err != nil {
		log.Info("fulltext: pmcid lookup failed, abstract only", zap.Error(err))
		return "", nil
	}
	if pmcid == "" {
		log.Debug("fulltext: no open-access copy, abstract only")
		return "", nil
	}
	ft, err := ix.lit.FullText(ctx, pmcid)
	if err != nil {
		log.Info("fulltext: full text fetch failed, abstract only", zap.String("pmcid", pmcid), zap.Error(err))
		return pmcid, nil
	}
	return pmcid, ft
}

type paper struct {
	doc      model.StoredDocument
	pmid     string
	pmcid    string
	fullText bool

	titleJA     string
	titleJADone bool
}

type outcome int

const (
	outcomeUpserted outcome = iota
	outcomeExists
	outcomeFailed
)

func (ix *Indexer) indexChunk(ctx context.Context, p *paper, section model.Section, lang model.Language, text string) outcome {
	log := zap.L().With(
		zap.String("pmid", p.pmid),
		zap.String("section", string(section)),
		zap.String("lang", string(lang)),
	)
	id := model.ChunkID(p.pmid, section, lang)

	exists, err := ix.vectors.Exists(ctx, id)
	if err != nil {
		log.Warn("fulltext: existence check failed", zap.Error(err))
		return ix.record(lang, outcomeFailed)
	}
	if exists {
		return ix.record(lang, outcomeExists)
	}

	payload := map[string]any{
		"category":           "dental",
		"topic":              "autotransplantation",
		"type":               "pubmed_paper",
		"parent_id":          p.doc.ID,
		"vector_id":          fmt.Sprintf("pubmed_%s_%s_%s", p.pmid, section, lang),
		"original_id":        "pubmed_" + p.pmid,
		"pmid":               p.pmid,
		"pmcid":              p.pmcid,
		"section":            section,
		"weight":             section.Weight(),
		"journal":            p.doc.Author,
		"published_date":     p.doc.PublishedDate(),
		"url":                p.doc.URL,
		"source":             string(model.SourcePubMed),
		"language":           lang,
		"fulltext_available": p.fullText,
	}

	var chunkText string
	if lang == model.LangEN {
		chunkText = fmt.Sprintf("%s\n\n[%s]\n%s", p.doc.Title, strings.ToUpper(string(section)), text)
		payload["title"] = p.doc.Title
		payload["section_text"] = text
	} else {
		translated, err := ix.translate(ctx, text, section.JapaneseName())
		if err != nil {
			log.Warn("fulltext: translation failed, skipping", zap.Error(err))
			return ix.record(lang, outcomeFailed)
		}
		title := ix.japaneseTitle(ctx, p)
		chunkText = fmt.Sprintf("%s\n\n[%s]\n%s", title, section.JapaneseName(), translated)
		payload["title"] = title
		payload["title_original"] = p.doc.Title
		payload["section_text"] = translated
		payload["section_text_original"] = text
	}
	payload["text"] = chunkText

	emb, err := ix.ai.Embed(ctx, truncate(chunkText, maxEmbedChars))
	if err != nil {
		log.Warn("fulltext: embedding failed, skipping", zap.Error(err))
		return ix.record(lang, outcomeFailed)
	}
	ix.charge(ix.cfg.EmbeddingModel, emb.PromptTokens, 0)

	if err := ix.vectors.Upsert(ctx, id, emb.Embedding, payload); err != nil {
		log.Warn("fulltext: upsert failed", zap.Error(err))
		return ix.record(lang, outcomeFailed)
	}
	log.Debug("fulltext: chunk upserted", zap.String("chunk_id", id))
	return ix.record(lang, outcomeUpserted)
}

// japaneseTitle translates the paper title once, falling back to the
// original on failure.
func (ix *Indexer) japaneseTitle(ctx context.Context, p *paper) string {
	if !p.titleJADone {
		p.titleJADone = true
		t, err := ix.translate(ctx, p.doc.Title, titleLabel)
		if err != nil {
			zap.L().Debug("fulltext: title translation failed, using original", zap.String("pmid", p.pmid), zap.Error(err))
		}
		p.titleJA = t
	}
	if p.titleJA == "" {
		return p.doc.Title
	}
	return p.titleJA
}

func (ix *Indexer) record(lang model.Language, o outcome) outcome {
	label := "upserted"
	switch o {
	case outcomeExists:
		label = "exists"
	case outcomeFailed:
		label = "skipped"
	}
	metrics.IndexedChunksTotal.WithLabelValues(string(lang), label).Inc()
	return o
}

func (ix *Indexer) charge(model string, input, output int) {
	if ix.calc == nil {
		return
	}
	usd := ix.calc.OpenAI(model, int64(input), int64(output))
	ix.spent += usd
	metrics.LLMCostUSD.WithLabelValues("openai", model).Add(usd)
}

func truncate(s string, n int) string {
	return scrape.Truncate(s, n)
}
