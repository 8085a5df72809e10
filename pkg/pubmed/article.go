package pubmed

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/autotrans-cli/internal/fetcher"
)

// Article is one parsed PubMed record.
type Article struct {
	PMID        string
	Title       string
	Abstract    string
	Journal     string
	Authors     []string
	DOI         string
	PMCID       string
	PublishedAt time.Time
}

// URL is the canonical PubMed page for the article.
func (a Article) URL() string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + a.PMID + "/"
}

// innerText collects all character data beneath an element, so inline
// markup such as <i> or <sup> in titles does not truncate the text.
type innerText string

func (t *innerText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(v)
		}
	}
	*t = innerText(collapseSpace(sb.String()))
	return nil
}

// abstractPart is one AbstractText element of a structured abstract.
type abstractPart struct {
	Label string
	Text  string
}

func (p *abstractPart) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			p.Label = attr.Value
		}
	}
	var t innerText
	if err := t.UnmarshalXML(d, start); err != nil {
		return err
	}
	p.Text = string(t)
	return nil
}

type xmlArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title string `xml:"Title"`
				Issue struct {
					PubDate xmlDate `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			Title    innerText `xml:"ArticleTitle"`
			Abstract []abstractPart `xml:"Abstract>AbstractText"`
			Authors []struct {
				LastName       string `xml:"LastName"`
				ForeName       string `xml:"ForeName"`
				CollectiveName string `xml:"CollectiveName"`
			} `xml:"AuthorList>Author"`
			ArticleDates []xmlDate `xml:"ArticleDate"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	ArticleIDs []struct {
		Type string `xml:"IdType,attr"`
		ID   string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type xmlDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

// ParseArticles decodes an efetch PubmedArticleSet document.
func ParseArticles(data []byte) ([]Article, error) {
	raw, err := fetcher.DecodeElements[xmlArticle](data, "PubmedArticle")
	if err != nil {
		return nil, err
	}
	out := make([]Article, 0, len(raw))
	for _, r := range raw {
		a := Article{
			PMID:    strings.TrimSpace(r.Citation.PMID),
			Title:   string(r.Citation.Article.Title),
			Journal: strings.TrimSpace(r.Citation.Article.Journal.Title),
		}
		if a.PMID == "" {
			continue
		}

		var parts []string
		for _, p := range r.Citation.Article.Abstract {
			text := p.Text
			if p.Label != "" && text != "" {
				text = p.Label + ": " + text
			}
			if text != "" {
				parts = append(parts, text)
			}
		}
		a.Abstract = strings.Join(parts, "\n")

		for _, au := range r.Citation.Article.Authors {
			switch {
			case au.CollectiveName != "":
				a.Authors = append(a.Authors, au.CollectiveName)
			case au.LastName != "":
				a.Authors = append(a.Authors, strings.TrimSpace(au.ForeName+" "+au.LastName))
			}
		}

		for _, id := range r.ArticleIDs {
			switch id.Type {
			case "doi":
				a.DOI = strings.TrimSpace(id.ID)
			case "pmc":
				a.PMCID = strings.TrimSpace(id.ID)
			}
		}

		a.PublishedAt = r.Citation.Article.Journal.Issue.PubDate.time()
		if a.PublishedAt.IsZero() && len(r.Citation.Article.ArticleDates) > 0 {
			a.PublishedAt = r.Citation.Article.ArticleDates[0].time()
		}
		out = append(out, a)
	}
	return out, nil
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func parseMonth(s string) time.Month {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return time.Month(n)
	}
	if len(s) >= 3 {
		if m, ok := monthNames[s[:3]]; ok {
			return m
		}
	}
	return 0
}

// time degrades from a full date to year/month with day 1, then year with
// January 1. A MedlineDate like "2019 Jan-Feb" uses its leading year and
// month. The zero time means no usable year.
func (d xmlDate) time() time.Time {
	year, month, day := d.Year, d.Month, d.Day
	if fields := strings.Fields(d.MedlineDate); year == "" && len(fields) > 0 {
		year = fields[0]
		if len(fields) > 1 {
			month = strings.SplitN(fields[1], "-", 2)[0]
		}
	}

	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y < 1000 {
		if len(year) >= 4 {
			y, err = strconv.Atoi(year[:4])
		}
		if err != nil || y < 1000 {
			return time.Time{}
		}
	}
	m := parseMonth(month)
	if m == 0 {
		m = time.January
	}
	dd, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || dd < 1 || dd > 31 {
		dd = 1
	}
	t := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	if t.Month() != m {
		t = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
