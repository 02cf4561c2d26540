package parsers

import (
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"law_arch/internal/citation"
	"law_arch/internal/models"
)

// CLMLParser reads the Crown Legislation Markup Language served by
// legislation.gov.uk. A section is a P1group holding a Title and one P1;
// P2 and P3 elements are its subsections.
type CLMLParser struct{}

func (p *CLMLParser) Format() models.SourceFormat { return models.FormatCLML }

func (p *CLMLParser) ParseSection(raw []byte, c citation.Citation) (*models.Section, error) {
	doc, err := parseXML(raw)
	if err != nil {
		return nil, malformed(models.FormatCLML, err)
	}

	section := models.NewSection(c, "")
	defer stamp(section, models.FormatCLML, checksum(raw))

	group := findLocalOne(doc, "P1group")
	var p1 *xmlquery.Node
	if group != nil {
		section.Heading = text(element(group, "Title"))
		p1 = element(group, "P1")
	}
	if p1 == nil {
		p1 = findLocalOne(doc, "P1")
	}
	if p1 == nil {
		return section, mismatch(models.FormatCLML, "P1 provision")
	}

	p.fill(section, p1, 2)
	if group == nil || section.Heading == "" {
		return section, mismatch(models.FormatCLML, "P1group title")
	}
	return section, nil
}

// fill copies the paragraph text of a Pn element into s and turns its
// P(n+1) elements into children.
func (p *CLMLParser) fill(s *models.Section, pn *xmlquery.Node, childLevel int) {
	childName := "P" + strconv.Itoa(childLevel)
	for _, para := range elements(pn, "P"+strconv.Itoa(childLevel-1)+"para") {
		for _, n := range elements(para) {
			switch n.Data {
			case "Text":
				s.Text = append(s.Text, spans(n.InnerText())...)
			case childName:
				label := numLabel(text(element(n, "Pnumber")))
				if label == "" {
					label = strconv.Itoa(len(s.Children) + 1)
				}
				child := models.NewSection(childCitation(s.Citation, label), "")
				p.fill(child, n, childLevel+1)
				if err := models.AppendChild(s, child); err != nil {
					s.Text = append(s.Text, spans(n.InnerText())...)
				}
			}
		}
	}
}

// ParseAct reads the act title and the number of body paragraphs, which on
// legislation.gov.uk equals the number of sections.
func (p *CLMLParser) ParseAct(raw []byte, c citation.Citation) (*models.Act, error) {
	doc, err := parseXML(raw)
	if err != nil {
		return nil, malformed(models.FormatCLML, err)
	}
	act := &models.Act{Citation: c.Parent()}

	if stats := findLocalOne(doc, "BodyParagraphs"); stats != nil {
		act.SectionCount, _ = strconv.Atoi(strings.TrimSpace(stats.SelectAttr("Value")))
	}
	if md := findLocalOne(doc, "Metadata"); md != nil {
		act.Title = text(xmlquery.FindOne(md, ".//*[local-name()='title']"))
	}
	if act.Title == "" {
		act.Title = text(findLocalOne(doc, "Title"))
	}
	if act.Title == "" {
		return act, mismatch(models.FormatCLML, "act title")
	}
	return act, nil
}
