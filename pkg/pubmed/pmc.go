package pubmed

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/fetcher"
	"github.com/sells-group/autotrans-cli/internal/model"
)

// FullText is a PMC article split into named sections. Sections holds only
// non-empty entries.
type FullText struct {
	PMCID    string
	Title    string
	Sections map[model.Section]string
}

// sectionKeywords maps heading keywords to sections. Order matters: the
// first section with a matching keyword wins.
var sectionKeywords = []struct {
	section  model.Section
	keywords []string
}{
	{model.SectionIntroduction, []string{"introduction", "background"}},
	{model.SectionMethods, []string{"methods", "materials and methods", "methodology", "experimental"}},
	{model.SectionResults, []string{"results", "findings"}},
	{model.SectionDiscussion, []string{"discussion"}},
	{model.SectionConclusions, []string{"conclusion", "conclusions", "summary"}},
}

// IdentifySection maps a section heading to a known section. Unmatched
// headings return false.
func IdentifySection(heading string) (model.Section, bool) {
	h := strings.ToLower(heading)
	for _, sk := range sectionKeywords {
		for _, kw := range sk.keywords {
			if strings.Contains(h, kw) {
				return sk.section, true
			}
		}
	}
	return "", false
}

type node struct {
	name     string
	text     string
	children []*node
}

func (n *node) find(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if f := c.find(name); f != nil {
			return f
		}
	}
	return nil
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *node) textExcept(skip *node) string {
	var sb strings.Builder
	var walk func(*node)
	walk = func(x *node) {
		if x == skip {
			return
		}
		if x.name == "" {
			sb.WriteString(x.text)
			sb.WriteByte(' ')
			return
		}
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(n)
	return collapseSpace(sb.String())
}

func parseTree(data []byte) (*node, error) {
	d := fetcher.NewXMLDecoder(bytes.NewReader(data))
	root := &node{name: "#document"}
	stack := []*node{root}
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "pubmed: parse pmc xml")
		}
		top := stack[len(stack)-1]
		switch v := tok.(type) {
		case xml.StartElement:
			n := &node{name: v.Name.Local}
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(bytes.TrimSpace(v)) > 0 {
				top.children = append(top.children, &node{text: string(v)})
			}
		}
	}
	return root, nil
}

// ParseFullText splits a PMC efetch document into sections. The first
// <abstract> becomes the abstract. Body <sec> elements whose <title> matches
// a known heading contribute their whole text, nested subsections
// included; unmatched sections are searched for matching subsections.
func ParseFullText(data []byte) (*FullText, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, err
	}

	ft := &FullText{Sections: make(map[model.Section]string)}
	if t := root.find("article-title"); t != nil {
		ft.Title = t.textExcept(nil)
	}
	if abs := root.find("abstract"); abs != nil {
		ft.Sections[model.SectionAbstract] = abs.textExcept(nil)
	}

	collected := make(map[model.Section][]string)
	var walk func(*node)
	walk = func(n *node) {
		for _, c := range n.children {
			if c.name != "sec" {
				continue
			}
			title := c.child("title")
			if title != nil {
				if section, ok := IdentifySection(title.textExcept(nil)); ok {
					collected[section] = append(collected[section], c.textExcept(title))
					continue
				}
			}
			walk(c)
		}
	}
	if body := root.find("body"); body != nil {
		walk(body)
	}

	for section, parts := range collected {
		ft.Sections[section] = collapseSpace(strings.Join(parts, " "))
	}
	for section, text := range ft.Sections {
		if text == "" {
			delete(ft.Sections, section)
		}
	}
	return ft, nil
}
