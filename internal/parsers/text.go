package parsers

import (
	"regexp"
	"strings"

	"law_arch/internal/citation"
	"law_arch/internal/models"
)

// normalizeSpace collapses runs of whitespace.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func spans(paragraphs ...string) []models.TextSpan {
	var out []models.TextSpan
	for _, p := range paragraphs {
		if p = normalizeSpace(p); p != "" {
			out = append(out, models.TextSpan{Text: p})
		}
	}
	return out
}

var reMarker = regexp.MustCompile(`^\(([0-9]+|[a-z]{1,2}|[A-Z])\)\s*`)

type markerClass int

const (
	markerDigit markerClass = iota + 1
	markerLower
	markerUpper
)

// leadingMarker splits "(a) text" into "a" and its class.
func leadingMarker(p string) (string, markerClass, bool) {
	m := reMarker.FindStringSubmatch(p)
	if m == nil {
		return "", 0, false
	}
	label := m[1]
	switch {
	case label[0] >= '0' && label[0] <= '9':
		return label, markerDigit, true
	case label[0] >= 'A' && label[0] <= 'Z':
		return label, markerUpper, true
	}
	return label, markerLower, true
}

func childCitation(parent citation.Citation, label string) citation.Citation {
	return parent.WithSection(parent.Section + "(" + label + ")")
}

// buildOutline distributes paragraphs over a section and its subsections.
// The class of the first marker opens the first level; a marker of another
// class opens a level below the current node. Paragraphs without a marker
// continue the current node. A repeated label cannot become a sibling and
// is kept as text.
func buildOutline(s *models.Section, paragraphs []string) {
	type level struct {
		class markerClass
		node  *models.Section
	}
	var stack []level
	current := s

	for _, p := range paragraphs {
		p = normalizeSpace(p)
		if p == "" {
			continue
		}
		label, class, ok := leadingMarker(p)
		if !ok {
			current.Text = append(current.Text, models.TextSpan{Text: p})
			continue
		}

		depth := -1
		for i, l := range stack {
			if l.class == class {
				depth = i
				break
			}
		}
		ancestors := stack
		if depth >= 0 {
			ancestors = stack[:depth]
		}
		parent := s
		if len(ancestors) > 0 {
			parent = ancestors[len(ancestors)-1].node
		}

		child := models.NewSection(childCitation(parent.Citation, label), "")
		if err := models.AppendChild(parent, child); err != nil {
			current.Text = append(current.Text, models.TextSpan{Text: p})
			continue
		}
		if rest := strings.TrimSpace(p[len(reMarker.FindString(p)):]); rest != "" {
			child.Text = append(child.Text, models.TextSpan{Text: rest})
		}
		stack = append(ancestors, level{class: class, node: child})
		current = child
	}
}
