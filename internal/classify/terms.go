package classify

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/autotrans-cli/internal/model"
)

// Terms are the keyword lists for one language.
type Terms struct {
	// Core terms name the procedure itself; one hit accepts.
	Core []string `yaml:"core"`
	// Supporting terms place the text in dentistry without naming the
	// procedure.
	Supporting []string `yaml:"supporting"`
	// Technique terms are instruments and methods used in the procedure.
	Technique []string `yaml:"technique"`
	// Deny terms mark unrelated transplant fields or advertising; one hit
	// rejects.
	Deny []string `yaml:"deny"`
}

// TermSet holds Terms per language.
type TermSet map[model.Language]Terms

// DefaultTerms returns the built-in lists.
func DefaultTerms() TermSet {
	return TermSet{
		model.LangJA: {
			Core: []string{
				"自家歯牙移植", "自家歯移植", "歯牙移植", "歯の移植", "歯の自家移植",
				"ドナーレプリカ", "移植窩", "移植窩形成", "歯の再植", "自家移植歯",
			},
			Supporting: []string{
				"歯科", "口腔", "口腔外科", "歯根膜", "抜歯", "親知らず", "智歯", "大臼歯", "歯周",
			},
			Technique: []string{
				"cbct", "3dプリンタ", "3d プリンタ", "デジタルレプリカ", "デジタル レプリカ", "レプリカ", "サージカルガイド",
			},
			Deny: []string{
				"乳房インプラント", "インプラント医院", "おすすめ", "ランキング", "費用", "名医", "口コミ", "広告",
				"腎移植", "肝移植", "角膜", "骨移植", "皮膚移植", "臓器", "移植片", "骨髄移植",
			},
		},
		model.LangEN: {
			Core: []string{
				"tooth autotransplantation", "autogenous tooth transplantation", "autotransplanted tooth",
				"autotransplanted teeth", "autotransplantation of teeth", "tooth transplantation",
				"donor tooth replica", "dental autotransplantation",
			},
			Supporting: []string{
				"dental", "dentistry", "oral", "maxillofacial", "periodontal", "endodontic",
				"molar", "premolar", "tooth", "teeth", "autotransplantation",
			},
			Technique: []string{
				"cbct", "3d print", "3d-printed", "3d printed", "recipient site", "alveolar socket",
				"replica", "surgical guide", "periodontal ligament",
			},
			Deny: []string{
				"kidney", "renal", "liver", "hepatic", "corneal", "bone graft", "skin graft", "organ",
				"allograft", "xenograft", "implant clinic", "best clinic", "cost", "pricing",
				"cosmetic", "whitening", "aligner", "ad",
			},
		},
	}
}

// LoadTerms reads term lists from a YAML file keyed by language. Languages
// present in the file replace the defaults wholesale; absent ones keep them.
// An empty path returns the defaults.
func LoadTerms(path string) (TermSet, error) {
	if path == "" {
		return DefaultTerms(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read terms %s", path)
	}

	var raw map[string]Terms
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "classify: parse terms")
	}

	set := DefaultTerms()
	for key, t := range raw {
		lang, err := model.ParseLanguage(key, false)
		if err != nil {
			return nil, eris.Wrapf(err, "classify: terms file %s", path)
		}
		set[lang] = t
	}
	return set, nil
}

// normalize folds full-width and half-width forms to their canonical width
// and lower-cases, so "ＣＢＣＴ" matches "cbct" and half-width katakana
// matches full-width terms.
func normalize(s string) string {
	return strings.ToLower(width.Fold.String(s))
}

// firstMatch returns the first term found in text, or "". text must already
// be normalized.
func firstMatch(text string, terms []string) string {
	for _, t := range terms {
		if containsTerm(text, normalize(t)) {
			return t
		}
	}
	return ""
}

// countMatches returns how many distinct terms occur in text.
func countMatches(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if containsTerm(text, normalize(t)) {
			n++
		}
	}
	return n
}

// containsTerm matches ASCII terms on word boundaries, so "ad" does not hit
// "advanced". Other terms match as plain substrings since Japanese has no
// word delimiters.
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	if !isASCII(term) {
		return strings.Contains(text, term)
	}
	for off := 0; ; {
		i := strings.Index(text[off:], term)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(term)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		off = start + 1
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
