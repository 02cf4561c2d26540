package citation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"law_arch/internal/errs"
)

type Style string

const (
	StyleStatute  Style = "statute"
	StyleUSC      Style = "usc"
	StyleUK       Style = "uk"
	StyleGuidance Style = "guidance"
)

// styleTable maps jurisdiction codes to their grammar. Codes not listed fall
// back on prefix "uk" or the generic statute grammar.
var styleTable = map[string]Style{
	"uk":     StyleUK,
	"us":     StyleUSC,
	"us-irs": StyleGuidance,
}

func StyleFor(jurisdiction string) Style {
	j := strings.ToLower(strings.TrimSpace(jurisdiction))
	if s, ok := styleTable[j]; ok {
		return s
	}
	if strings.HasPrefix(j, "uk-") {
		return StyleUK
	}
	return StyleStatute
}

func (s Style) containerType() Type {
	switch s {
	case StyleUK, StyleGuidance:
		return TypeAct
	}
	return TypeCode
}

type grammar interface {
	parse(raw string) (Citation, error)
	render(c Citation) string
}

var grammars = map[Style]grammar{
	StyleStatute:  statuteGrammar{},
	StyleUSC:      uscGrammar{},
	StyleUK:       ukGrammar{},
	StyleGuidance: guidanceGrammar{},
}

const (
	numberTok  = `[0-9A-Za-z]+(?:[.\-][0-9A-Za-z]+)*`
	sectionTok = `[0-9A-Za-z]+(?:[.\-:][0-9A-Za-z]+)*(?:\([0-9A-Za-z]+\))*`
)

var (
	errNoMatch = errors.New("does not match any known form")

	reStatuteChapter        = regexp.MustCompile(`^ch\. (` + numberTok + `)$`)
	reStatuteChapterSection = regexp.MustCompile(`^ch\. (` + numberTok + `) § (` + sectionTok + `)$`)
	reStatuteActSection     = regexp.MustCompile(`^Act (` + numberTok + `)(?: \((\d{4})\))? § (` + sectionTok + `)$`)
	reStatuteAct     = regexp.MustCompile(`^Act (` + numberTok + `)(?: \((\d{4})\))?$`)
	reStatuteSection = regexp.MustCompile(`^(?:(` + numberTok + `) )?§ (` + sectionTok + `)$`)
	reStatuteCode    = regexp.MustCompile(`^(` + numberTok + `)$`)

	reUSC = regexp.MustCompile(`^(` + numberTok + `) U\.S\.C\.(?: § (` + sectionTok + `))?$`)

	reUK = regexp.MustCompile(`^([A-Za-z]+)/(\d{4})/(` + numberTok + `)(?:/section/(` + sectionTok + `))?$`)

	reGuidance = regexp.MustCompile(`^(Rev\. Proc\.|Rev\. Rul\.|Notice|Announcement) ((\d{4})-\d+)(?: § (` + sectionTok + `))?$`)
)

type statuteGrammar struct{}

func (statuteGrammar) parse(raw string) (Citation, error) {
	if m := reStatuteChapterSection.FindStringSubmatch(raw); m != nil {
		return Citation{Type: TypeSection, Container: TypeChapter, Number: m[1], Section: m[2]}, nil
	}
	if m := reStatuteActSection.FindStringSubmatch(raw); m != nil {
		c := Citation{Type: TypeSection, Container: TypeAct, Number: m[1], Section: m[3]}
		if m[2] != "" {
			c.Year, _ = strconv.Atoi(m[2])
		}
		return c, nil
	}
	if m := reStatuteChapter.FindStringSubmatch(raw); m != nil {
		return Citation{Type: TypeChapter, Number: m[1]}, nil
	}
	if m := reStatuteAct.FindStringSubmatch(raw); m != nil {
		c := Citation{Type: TypeAct, Number: m[1]}
		if m[2] != "" {
			c.Year, _ = strconv.Atoi(m[2])
		}
		return c, nil
	}
	if m := reStatuteSection.FindStringSubmatch(raw); m != nil {
		return Citation{Type: TypeSection, Number: m[1], Section: m[2]}, nil
	}
	if m := reStatuteCode.FindStringSubmatch(raw); m != nil {
		return Citation{Type: TypeCode, Number: m[1]}, nil
	}
	return Citation{}, errNoMatch
}

func (statuteGrammar) render(c Citation) string {
	container := renderStatuteContainer(c)
	switch {
	case c.Section == "":
		return container
	case container == "":
		return "§ " + c.Section
	}
	return container + " § " + c.Section
}

func renderStatuteContainer(c Citation) string {
	switch c.ContainerType() {
	case TypeChapter:
		return "ch. " + c.Number
	case TypeAct:
		if c.Year != 0 {
			return "Act " + c.Number + " (" + strconv.Itoa(c.Year) + ")"
		}
		return "Act " + c.Number
	}
	return c.Number
}

type uscGrammar struct{}

// Chapters and acts of the federal code use the statute forms ("ch. 1",
// "Act 5 (2019) § 3"); titles use the U.S.C. form.
func (uscGrammar) parse(raw string) (Citation, error) {
	m := reUSC.FindStringSubmatch(raw)
	if m == nil {
		c, err := statuteGrammar{}.parse(raw)
		if err != nil {
			return Citation{}, err
		}
		if c.ContainerType() == TypeCode {
			return Citation{}, errNoMatch
		}
		return c, nil
	}
	if m[2] != "" {
		return Citation{Type: TypeSection, Number: m[1], Section: m[2]}, nil
	}
	return Citation{Type: TypeCode, Number: m[1]}, nil
}

func (uscGrammar) render(c Citation) string {
	if t := c.ContainerType(); t == TypeChapter || t == TypeAct {
		return statuteGrammar{}.render(c)
	}
	if c.Section != "" {
		return c.Number + " U.S.C. § " + c.Section
	}
	return c.Number + " U.S.C."
}

type ukGrammar struct{}

func (ukGrammar) parse(raw string) (Citation, error) {
	m := reUK.FindStringSubmatch(raw)
	if m == nil {
		return Citation{}, errNoMatch
	}
	year, _ := strconv.Atoi(m[2])
	c := Citation{Type: TypeAct, Series: m[1], Year: year, Number: m[3]}
	if m[4] != "" {
		c.Type = TypeSection
		c.Section = m[4]
	}
	return c, nil
}

func (ukGrammar) render(c Citation) string {
	s := c.Series + "/" + strconv.Itoa(c.Year) + "/" + c.Number
	if c.Section != "" {
		s += "/section/" + c.Section
	}
	return s
}

var guidanceLabels = map[string]string{
	"rp": "Rev. Proc.",
	"rr": "Rev. Rul.",
	"n":  "Notice",
	"a":  "Announcement",
}

type guidanceGrammar struct{}

func (guidanceGrammar) parse(raw string) (Citation, error) {
	m := reGuidance.FindStringSubmatch(raw)
	if m == nil {
		return Citation{}, errNoMatch
	}
	var series string
	for k, label := range guidanceLabels {
		if label == m[1] {
			series = k
		}
	}
	year, _ := strconv.Atoi(m[3])
	c := Citation{Type: TypeAct, Series: series, Year: year, Number: m[2]}
	if m[4] != "" {
		c.Type = TypeSection
		c.Section = m[4]
	}
	return c, nil
}

func (guidanceGrammar) render(c Citation) string {
	s := guidanceLabels[c.Series] + " " + c.Number
	if c.Section != "" {
		s += " § " + c.Section
	}
	return s
}

// GuidanceLabel returns the long label for an IRS guidance series ("rp" ->
// "Rev. Proc.").
func GuidanceLabel(series string) string { return guidanceLabels[strings.ToLower(series)] }

func formatError(jurisdiction, raw, reason string) error {
	return &errs.CitationFormatError{Jurisdiction: jurisdiction, Raw: raw, Reason: reason}
}

func (s Style) render(c Citation) string {
	g, ok := grammars[s]
	if !ok {
		return c.Number
	}
	return g.render(c)
}
