package parsers

import (
	"github.com/antchfx/xmlquery"

	"law_arch/internal/citation"
	"law_arch/internal/models"
)

// uslmLevels lists the USLM provision levels below section, outermost first.
var uslmLevels = []string{"subsection", "paragraph", "subparagraph", "clause", "subclause", "item", "subitem"}

// USLMParser reads the United States Legislative Markup of the U.S. Code.
type USLMParser struct{}

func (p *USLMParser) Format() models.SourceFormat { return models.FormatUSLM }

// ParseSection picks the section whose num value matches the citation, or
// the first section when the payload holds a single one.
func (p *USLMParser) ParseSection(raw []byte, c citation.Citation) (*models.Section, error) {
	doc, err := parseXML(raw)
	if err != nil {
		return nil, malformed(models.FormatUSLM, err)
	}
	sum := checksum(raw)

	candidates := findLocal(doc, "section")
	var node *xmlquery.Node
	for _, n := range candidates {
		if sectionLabel(n) == c.Section {
			node = n
			break
		}
	}
	if node == nil && len(candidates) == 1 {
		node = candidates[0]
	}
	if node == nil {
		section := models.NewSection(c, "")
		stamp(section, models.FormatUSLM, sum)
		return section, mismatch(models.FormatUSLM, "section "+c.Section)
	}

	section := models.NewSection(c, text(element(node, "heading")))
	p.fill(section, node)
	stamp(section, models.FormatUSLM, sum)
	if section.Heading == "" {
		return section, mismatch(models.FormatUSLM, "section heading")
	}
	return section, nil
}

// ParseDocument splits a title document into its sections.
func (p *USLMParser) ParseDocument(raw []byte, act citation.Citation) ([]*models.Section, error) {
	doc, err := parseXML(raw)
	if err != nil {
		return nil, malformed(models.FormatUSLM, err)
	}
	sum := checksum(raw)

	var out []*models.Section
	seen := make(map[string]bool)
	for _, n := range findLocal(doc, "section") {
		label := sectionLabel(n)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		s := models.NewSection(act.WithSection(label), text(element(n, "heading")))
		s.Position = len(out) + 1
		p.fill(s, n)
		stamp(s, models.FormatUSLM, sum)
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, mismatch(models.FormatUSLM, "section elements")
	}
	return out, nil
}

func sectionLabel(n *xmlquery.Node) string {
	num := element(n, "num")
	if num == nil {
		return ""
	}
	if v := num.SelectAttr("value"); v != "" {
		return v
	}
	return numLabel(text(num))
}

func (p *USLMParser) fill(s *models.Section, n *xmlquery.Node) {
	for _, c := range elements(n) {
		switch {
		case hasName(c, []string{"chapeau", "content", "continuation", "p"}):
			s.Text = append(s.Text, spans(c.InnerText())...)
		case hasName(c, uslmLevels):
			label := sectionLabel(c)
			if label == "" {
				continue
			}
			child := models.NewSection(childCitation(s.Citation, label), text(element(c, "heading")))
			p.fill(child, c)
			if err := models.AppendChild(s, child); err != nil {
				s.Text = append(s.Text, spans(c.InnerText())...)
			}
		}
	}
}
