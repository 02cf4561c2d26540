package akn

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/antchfx/xmlquery"

	"law_arch/internal/citation"
	"law_arch/internal/errs"
	"law_arch/internal/models"
)

// ParseCanonicalXML reads a document written by ToCanonicalXML or
// SectionToCanonicalXML. Positions are assigned from document order.
func ParseCanonicalXML(data []byte) (*models.Act, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &errs.MalformedSourceError{Format: "akn", Err: err}
	}
	root := child(doc, "akomaNtoso")
	if root == nil {
		return nil, &errs.MalformedSourceError{Format: "akn", Err: fmt.Errorf("no akomaNtoso root")}
	}
	actNode := child(root, "act")
	if actNode == nil {
		return nil, &errs.StructuralMismatchError{Format: "akn", Missing: "act"}
	}

	act := &models.Act{Citation: readActCitation(actNode)}
	if preface := child(actNode, "preface"); preface != nil {
		if lt := child(preface, "longTitle"); lt != nil {
			if p := child(lt, "p"); p != nil {
				act.Title = p.InnerText()
			}
		}
	}
	body := child(actNode, "body")
	if body == nil {
		return act, nil
	}
	for i, n := range children(body, "section") {
		s, err := readSection(n, act.Citation)
		if err != nil {
			return nil, err
		}
		s.Position = i + 1
		act.Sections = append(act.Sections, s)
	}
	return act, nil
}

func readActCitation(n *xmlquery.Node) citation.Citation {
	c := citation.Citation{
		Jurisdiction: n.SelectAttr("jurisdiction"),
		Type:         citation.Type(n.SelectAttr("name")),
		Series:       n.SelectAttr("series"),
		Number:       n.SelectAttr("number"),
	}
	if y := n.SelectAttr("year"); y != "" {
		c.Year, _ = strconv.Atoi(y)
	}
	return citation.Normalize(c)
}

func readSection(n *xmlquery.Node, act citation.Citation) (*models.Section, error) {
	sec := n.SelectAttr("section")
	if sec == "" {
		return nil, &errs.StructuralMismatchError{Format: "akn", Missing: "section attribute on " + n.SelectAttr("eId")}
	}
	heading := ""
	if h := child(n, "heading"); h != nil {
		heading = h.InnerText()
	}
	s := models.NewSection(act.WithSection(sec), heading)
	s.SourceFormat = models.SourceFormat(n.SelectAttr("source"))
	s.RawChecksum = n.SelectAttr("checksum")
	if content := child(n, "content"); content != nil {
		for _, p := range children(content, "p") {
			s.Text = append(s.Text, models.TextSpan{Text: p.InnerText()})
		}
	}
	if history := child(n, "history"); history != nil {
		for _, p := range children(history, "p") {
			s.History = append(s.History, models.TextSpan{Text: p.InnerText()})
		}
	}
	for _, sub := range children(n, "subsection") {
		c, err := readSection(sub, act)
		if err != nil {
			return nil, err
		}
		if err := models.AppendChild(s, c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func children(n *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			out = append(out, c)
		}
	}
	return out
}

func child(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}
