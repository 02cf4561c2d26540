package parsers

import (
	"bytes"
	"errors"
	"strings"

	"github.com/antchfx/xmlquery"
)

var errNoRootElement = errors.New("no root element")

// parseXML reads raw into a node tree and rejects payloads without a root
// element, which the decoder otherwise accepts as bare character data.
func parseXML(raw []byte) (*xmlquery.Node, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errEmptyPayload
	}
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if rootElement(doc) == nil {
		return nil, errNoRootElement
	}
	return doc, nil
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// elements returns the element children of n with one of the local names,
// in document order. No names means every element child.
func elements(n *xmlquery.Node, names ...string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if len(names) == 0 || hasName(c, names) {
			out = append(out, c)
		}
	}
	return out
}

func element(n *xmlquery.Node, names ...string) *xmlquery.Node {
	if found := elements(n, names...); len(found) > 0 {
		return found[0]
	}
	return nil
}

func hasName(n *xmlquery.Node, names []string) bool {
	for _, name := range names {
		if n.Data == name {
			return true
		}
	}
	return false
}

func findLocal(top *xmlquery.Node, name string) []*xmlquery.Node {
	return xmlquery.Find(top, "//*[local-name()='"+name+"']")
}

func findLocalOne(top *xmlquery.Node, name string) *xmlquery.Node {
	return xmlquery.FindOne(top, "//*[local-name()='"+name+"']")
}

func text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return normalizeSpace(n.InnerText())
}

// numLabel strips the decoration of a provision number: "(a)" -> "a",
// "§ 32." -> "32".
// sectionLabel cleans a top level section number: section signs and a
// trailing period go, inner brackets stay ("§ 12.3(a)." -> "12.3(a)").
func sectionLabel(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "§ ")
	return strings.TrimSpace(strings.TrimRight(s, ". "))
}

func numLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "§")
	s = strings.Trim(s, " ().")
	return s
}
