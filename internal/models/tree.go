package models

import (
	"iter"
	"slices"
	"strings"

	"law_arch/internal/citation"
	"law_arch/internal/errs"
)

func NewSection(c citation.Citation, heading string) *Section {
	return &Section{Citation: citation.Normalize(c), Heading: heading}
}

// AppendChild appends child after the existing children. A child whose
// citation is already present among its siblings, or equal to the parent's,
// is rejected.
func AppendChild(parent, child *Section) error {
	if parent == child || parent.Citation.Equal(child.Citation) {
		return &errs.HierarchyError{
			Parent: parent.Citation.String(),
			Child:  child.Citation.String(),
			Reason: "node cannot contain itself",
		}
	}
	for _, sibling := range parent.Children {
		if sibling.Citation.Equal(child.Citation) {
			return &errs.HierarchyError{
				Parent: parent.Citation.String(),
				Child:  child.Citation.String(),
				Reason: "duplicate sibling citation",
			}
		}
	}
	if child.Position == 0 {
		child.Position = len(parent.Children) + 1
	}
	parent.Children = append(parent.Children, child)
	return nil
}

// IsLeaf reports whether s is a leaf provision.
func (s *Section) IsLeaf() bool { return len(s.Children) == 0 }

// PlainText joins the text spans with blank lines.
func (s *Section) PlainText() string {
	parts := make([]string, len(s.Text))
	for i, span := range s.Text {
		parts[i] = span.Text
	}
	return strings.Join(parts, "\n\n")
}

// Flatten walks the act depth first in document order. Every call returns
// an independent traversal.
func Flatten(act *Act) iter.Seq[*Section] {
	return func(yield func(*Section) bool) {
		for _, s := range act.Sections {
			if !walk(s, yield) {
				return
			}
		}
	}
}

func walk(s *Section, yield func(*Section) bool) bool {
	if !yield(s) {
		return false
	}
	for _, child := range s.Children {
		if !walk(child, yield) {
			return false
		}
	}
	return true
}

// Merge upserts sections by citation and restores document order. A
// replacement keeps the position of the node it replaces when it carries
// none of its own. Merging the same sections twice yields the same act.
func Merge(act *Act, sections ...*Section) {
	for _, s := range sections {
		if s == nil {
			continue
		}
		if i := act.indexOf(s.Citation); i >= 0 {
			if s.Position == 0 {
				s.Position = act.Sections[i].Position
			}
			act.Sections[i] = s
			continue
		}
		act.Sections = append(act.Sections, s)
	}
	slices.SortStableFunc(act.Sections, func(a, b *Section) int {
		return a.Position - b.Position
	})
}

// Lookup finds a top level section by citation.
func (a *Act) Lookup(c citation.Citation) (*Section, bool) {
	if i := a.indexOf(c); i >= 0 {
		return a.Sections[i], true
	}
	return nil, false
}

func (a *Act) indexOf(c citation.Citation) int {
	return slices.IndexFunc(a.Sections, func(s *Section) bool { return s.Citation.Equal(c) })
}
