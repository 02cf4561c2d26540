// Package akn renders the document model as canonical Akoma Ntoso flavoured
// XML and reads it back.
//
// The output is the durable interchange format: the same tree always yields
// the same bytes, so consumers can compare documents directly.
package akn

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"law_arch/internal/citation"
	"law_arch/internal/errs"
	"law_arch/internal/models"
)

const Namespace = "http://docs.oasis-open.org/legaldocml/ns/akn/3.0"

// ToCanonicalXML serializes a whole act.
func ToCanonicalXML(act *models.Act) (string, error) {
	if act == nil {
		return "", &errs.InvariantViolationError{Citation: "<nil>", Reason: "nil act"}
	}
	if act.Citation.IsSection() {
		return "", &errs.InvariantViolationError{Citation: act.Citation.String(), Reason: "act citation carries a section"}
	}
	return write(act.Citation, act.Title, act.Sections)
}

// SectionToCanonicalXML serializes one section inside an act wrapper that
// carries only the container citation.
func SectionToCanonicalXML(s *models.Section) (string, error) {
	if s == nil {
		return "", &errs.InvariantViolationError{Citation: "<nil>", Reason: "nil section"}
	}
	return write(s.Citation.Parent(), "", []*models.Section{s})
}

func write(act citation.Citation, title string, sections []*models.Section) (string, error) {
	w := &writer{seen: map[*models.Section]bool{}}
	if err := w.checkSiblings(act.String(), sections); err != nil {
		return "", err
	}

	// The declaration sits on its own line, the root element starts the next.
	var b strings.Builder
	b.WriteString(xml.Header)
	w.enc = xml.NewEncoder(&b)
	w.enc.Indent("", "  ")

	w.start("akomaNtoso", attr("xmlns", Namespace))
	w.start("act", actAttrs(act)...)
	if title != "" {
		w.start("preface")
		w.start("longTitle")
		w.leaf("p", title)
		w.end("longTitle")
		w.end("preface")
	}
	w.start("body")
	for _, s := range sections {
		if err := w.section(s, "", "section"); err != nil {
			return "", err
		}
	}
	w.end("body")
	w.end("act")
	w.end("akomaNtoso")

	if w.err == nil {
		w.err = w.enc.Close()
	}
	if w.err != nil {
		return "", fmt.Errorf("encode %s: %w", act, w.err)
	}
	return b.String() + "\n", nil
}

type writer struct {
	enc  *xml.Encoder
	err  error
	seen map[*models.Section]bool
	path []*models.Section
}

func (w *writer) token(t xml.Token) {
	if w.err == nil {
		w.err = w.enc.EncodeToken(t)
	}
}

func (w *writer) start(name string, attrs ...xml.Attr) {
	w.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (w *writer) end(name string) {
	w.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (w *writer) leaf(name, text string) {
	w.start(name)
	w.token(xml.CharData(text))
	w.end(name)
}

func (w *writer) section(s *models.Section, parentID, element string) error {
	if s == nil {
		return &errs.InvariantViolationError{Citation: parentID, Reason: "nil child"}
	}
	if w.seen[s] {
		reason := "node appears twice in the tree"
		for _, anc := range w.path {
			if anc == s {
				reason = "cycle"
			}
		}
		return &errs.InvariantViolationError{Citation: s.Citation.String(), Reason: reason}
	}
	w.seen[s] = true
	w.path = append(w.path, s)
	defer func() { w.path = w.path[:len(w.path)-1] }()

	if err := w.checkSiblings(s.Citation.String(), s.Children); err != nil {
		return err
	}

	num := label(s, w.parent())
	id := eID(parentID, element, num)
	attrs := []xml.Attr{
		attr("eId", id),
		attr("citation", s.Citation.String()),
		attr("section", s.Citation.Section),
	}
	if s.SourceFormat != "" {
		attrs = append(attrs, attr("source", string(s.SourceFormat)))
	}
	if s.RawChecksum != "" {
		attrs = append(attrs, attr("checksum", s.RawChecksum))
	}

	w.start(element, attrs...)
	w.leaf("num", num)
	if s.Heading != "" {
		w.leaf("heading", s.Heading)
	}
	if len(s.Text) > 0 {
		w.start("content")
		for _, span := range s.Text {
			w.leaf("p", span.Text)
		}
		w.end("content")
	}
	if len(s.History) > 0 {
		w.start("history")
		for _, note := range s.History {
			w.leaf("p", note.Text)
		}
		w.end("history")
	}
	for _, child := range s.Children {
		if err := w.section(child, id, "subsection"); err != nil {
			return err
		}
	}
	w.end(element)
	return w.err
}

func (w *writer) parent() *models.Section {
	if len(w.path) < 2 {
		return nil
	}
	return w.path[len(w.path)-2]
}

func (w *writer) checkSiblings(owner string, sections []*models.Section) error {
	keys := make(map[string]bool, len(sections))
	for _, s := range sections {
		if s == nil {
			continue
		}
		if !s.Citation.IsSection() {
			return &errs.InvariantViolationError{Citation: s.Citation.String(), Reason: "node without a section identifier"}
		}
		k := s.Citation.Key()
		if keys[k] {
			return &errs.InvariantViolationError{Citation: owner, Reason: "duplicate child " + s.Citation.String()}
		}
		keys[k] = true
	}
	return nil
}

// label is the part of the section identifier a node adds to its parent's:
// "(a)" for "5747.01(a)" under "5747.01".
func label(s, parent *models.Section) string {
	sec := s.Citation.Section
	if parent != nil {
		if rest, ok := strings.CutPrefix(sec, parent.Citation.Section); ok && rest != "" {
			return rest
		}
	}
	return sec
}

func eID(parentID, element, num string) string {
	prefix := "sec_"
	if element == "subsection" {
		prefix = "subsec_"
	}
	id := prefix + idToken(num)
	if parentID != "" {
		id = parentID + "__" + id
	}
	return id
}

func idToken(s string) string {
	s = strings.Trim(s, "()")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, s)
}

func actAttrs(c citation.Citation) []xml.Attr {
	c = citation.Normalize(c)
	attrs := []xml.Attr{
		attr("name", string(c.Type)),
		attr("jurisdiction", c.Jurisdiction),
		attr("citation", c.String()),
		attr("number", c.Number),
	}
	if c.Series != "" {
		attrs = append(attrs, attr("series", c.Series))
	}
	if c.Year != 0 {
		attrs = append(attrs, attr("year", strconv.Itoa(c.Year)))
	}
	return attrs
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}
