// Package citation gives every legal provision a structured, comparable,
// jurisdiction-aware identity.
package citation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type Type string

const (
	TypeAct     Type = "act"
	TypeCode    Type = "code"
	TypeChapter Type = "chapter"
	TypeSection Type = "section"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAct, TypeCode, TypeChapter, TypeSection:
		return true
	}
	return false
}

// Citation is an immutable value. Zero Year means the year is absent and an
// empty Section means the citation names a container rather than a provision.
// Container is the type of the enclosing container of a section; it is left
// empty when that is the jurisdiction's default container type.
type Citation struct {
	Jurisdiction string `json:"jurisdiction"`
	Type         Type   `json:"type"`
	Container    Type   `json:"container,omitempty"`
	Series       string `json:"series,omitempty"`
	Year         int    `json:"year,omitempty"`
	Number       string `json:"number"`
	Section      string `json:"section,omitempty"`
}

func NewAct(jurisdiction, series string, year int, number string) Citation {
	return Normalize(Citation{Jurisdiction: jurisdiction, Type: TypeAct, Series: series, Year: year, Number: number})
}

func NewCode(jurisdiction, number string) Citation {
	return Normalize(Citation{Jurisdiction: jurisdiction, Type: TypeCode, Number: number})
}

func NewChapter(jurisdiction, number string) Citation {
	return Normalize(Citation{Jurisdiction: jurisdiction, Type: TypeChapter, Number: number})
}

// WithSection returns the citation of a provision inside c. The container
// type of c is kept, so Parent gives c back.
func (c Citation) WithSection(section string) Citation {
	if c.Type != TypeSection {
		c.Container = c.Type
	}
	c.Type = TypeSection
	c.Section = section
	return Normalize(c)
}

// Parent returns the container citation (no section).
func (c Citation) Parent() Citation {
	if c.Section == "" {
		return c
	}
	c = Normalize(c)
	c.Type = c.ContainerType()
	c.Container = ""
	c.Section = ""
	return c
}

// ContainerType is the type of the container c names or belongs to.
func (c Citation) ContainerType() Type {
	switch {
	case c.Type != TypeSection:
		return c.Type
	case c.Container != "":
		return c.Container
	}
	return StyleFor(c.Jurisdiction).containerType()
}

func (c Citation) IsSection() bool { return c.Section != "" }

// Normalize case-folds the jurisdiction and series and strips whitespace from
// the identifiers.
func Normalize(c Citation) Citation {
	c.Jurisdiction = strings.ToLower(strings.TrimSpace(c.Jurisdiction))
	c.Series = strings.ToLower(stripSpace(c.Series))
	c.Number = stripSpace(c.Number)
	c.Section = stripSpace(c.Section)
	if c.Type != TypeSection || c.Container == StyleFor(c.Jurisdiction).containerType() {
		c.Container = ""
	}
	return c
}

func (c Citation) Equal(other Citation) bool {
	return Normalize(c) == Normalize(other)
}

// Key is a stable storage key covering every field.
func (c Citation) Key() string {
	c = Normalize(c)
	year := ""
	if c.Year != 0 {
		year = strconv.Itoa(c.Year)
	}
	return strings.Join([]string{c.Jurisdiction, c.TypeLabel(), c.Series, year, c.Number, c.Section}, "|")
}

// TypeLabel is the type, qualified by a non-default container type for
// sections ("section-chapter").
func (c Citation) TypeLabel() string {
	c = Normalize(c)
	if c.Container != "" {
		return string(c.Type) + "-" + string(c.Container)
	}
	return string(c.Type)
}

func (c Citation) String() string { return Render(c) }

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Compare orders citations for display: field by field, identifiers compared
// numerically where they hold digits ("9" < "10"). It must not be used as an
// equality test.
func Compare(a, b Citation) int {
	a, b = Normalize(a), Normalize(b)
	if d := strings.Compare(a.Jurisdiction, b.Jurisdiction); d != 0 {
		return d
	}
	if d := typeRank(a.Type) - typeRank(b.Type); d != 0 {
		return sign(d)
	}
	if d := typeRank(a.ContainerType()) - typeRank(b.ContainerType()); d != 0 {
		return sign(d)
	}
	if d := strings.Compare(a.Series, b.Series); d != 0 {
		return d
	}
	if d := a.Year - b.Year; d != 0 {
		return sign(d)
	}
	if d := naturalCompare(a.Number, b.Number); d != 0 {
		return d
	}
	return naturalCompare(a.Section, b.Section)
}

func typeRank(t Type) int {
	switch t {
	case TypeAct:
		return 0
	case TypeCode:
		return 1
	case TypeChapter:
		return 2
	case TypeSection:
		return 3
	}
	return 4
}

func sign(d int) int {
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}

// naturalCompare splits both strings into digit and non-digit runs and
// compares digit runs by value.
func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		ra, restA := nextRun(a)
		rb, restB := nextRun(b)
		da, db := isDigit(ra[0]), isDigit(rb[0])
		switch {
		case da && db:
			na := strings.TrimLeft(ra, "0")
			nb := strings.TrimLeft(rb, "0")
			if len(na) != len(nb) {
				return sign(len(na) - len(nb))
			}
			if d := strings.Compare(na, nb); d != 0 {
				return d
			}
			if len(ra) != len(rb) {
				return sign(len(ra) - len(rb))
			}
		case da:
			return -1
		case db:
			return 1
		default:
			if d := strings.Compare(strings.ToLower(ra), strings.ToLower(rb)); d != 0 {
				return d
			}
			if d := strings.Compare(ra, rb); d != 0 {
				return d
			}
		}
		a, b = restA, restB
	}
	return sign(len(a) - len(b))
}

func nextRun(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Render formats c in its jurisdiction's grammar.
func Render(c Citation) string {
	return StyleFor(c.Jurisdiction).render(Normalize(c))
}

// Parse reads raw using the grammar registered for jurisdiction.
func Parse(jurisdiction, raw string) (Citation, error) {
	return ParseStyle(StyleFor(jurisdiction), jurisdiction, raw)
}

// ParseStyle reads raw with an explicit grammar.
func ParseStyle(style Style, jurisdiction, raw string) (Citation, error) {
	g, ok := grammars[style]
	if !ok {
		return Citation{}, formatError(jurisdiction, raw, fmt.Sprintf("unknown citation style %q", style))
	}
	c, err := g.parse(strings.TrimSpace(raw))
	if err != nil {
		return Citation{}, formatError(jurisdiction, raw, err.Error())
	}
	c.Jurisdiction = jurisdiction
	return Normalize(c), nil
}
