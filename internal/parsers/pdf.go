package parsers

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"law_arch/internal/citation"
	"law_arch/internal/models"
)

// PDFParser extracts text from bulk PDF documents and synthesizes section
// citations from their headings.
type PDFParser struct{}

func (p *PDFParser) Format() models.SourceFormat { return models.FormatPDF }

func (p *PDFParser) ParseSection(raw []byte, c citation.Citation) (*models.Section, error) {
	sections, err := p.ParseDocument(raw, c.Parent())
	if err != nil && sections == nil {
		return nil, err
	}
	for _, s := range sections {
		if s.Citation.Equal(c) {
			return s, err
		}
	}
	section := models.NewSection(c, "")
	stamp(section, models.FormatPDF, checksum(raw))
	return section, mismatch(models.FormatPDF, "heading of section "+c.Section)
}

// ParseDocument returns the sections found in the document. A document
// without recognizable headings comes back as a single section "1" holding
// all of its text, together with a StructuralMismatchError.
func (p *PDFParser) ParseDocument(raw []byte, act citation.Citation) ([]*models.Section, error) {
	text, err := ExtractText(raw)
	if err != nil {
		return nil, err
	}
	sections := SynthesizeSections(text, act)
	sum := checksum(raw)
	if len(sections) == 0 {
		whole := models.NewSection(act.WithSection("1"), "")
		whole.Position = 1
		buildOutline(whole, textParagraphs(strings.Split(text, "\n")))
		stamp(whole, models.FormatPDF, sum)
		return []*models.Section{whole}, mismatch(models.FormatPDF, "section headings")
	}
	for _, s := range sections {
		stamp(s, models.FormatPDF, sum)
	}
	return sections, nil
}

// ExtractText returns the plain text of a PDF. The PDF reader panics on
// some corrupt inputs; that is reported as a malformed payload.
func ExtractText(raw []byte) (text string, err error) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("%PDF")) {
		return "", malformed(models.FormatPDF, fmt.Errorf("missing %%PDF header"))
	}
	defer func() {
		if r := recover(); r != nil {
			err = malformed(models.FormatPDF, fmt.Errorf("corrupt document: %v", r))
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", malformed(models.FormatPDF, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", malformed(models.FormatPDF, err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", malformed(models.FormatPDF, err)
	}
	return string(data), nil
}

var sectionHeaders = []*regexp.Regexp{
	// Colorado style: "39-22-104. Income tax imposed on individuals."
	regexp.MustCompile(`^(\d+[A-Za-z]?(?:[-.]\d+[A-Za-z]?)+)\.\s+(.+)$`),
	// "§ 5747.02. Tax rates." and "§ 32 Earned income"
	regexp.MustCompile(`^§\s*([0-9A-Za-z]+(?:[-.:][0-9A-Za-z]+)*)\.?\s+(.+)$`),
	// IRS guidance: "SECTION 3. SCOPE" or "Sec. 4. Application"
	regexp.MustCompile(`^(?:SECTION|Section|SEC\.|Sec\.)\s+(\d+[A-Za-z]?)\.\s+(.+)$`),
}

func matchHeader(line string) (label, heading string, ok bool) {
	for _, re := range sectionHeaders {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

// splitHeading separates the heading sentence from text that follows it on
// the same line.
func splitHeading(s string) (heading, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+2:])
	}
	return strings.TrimSuffix(s, "."), ""
}

// SynthesizeSections walks the lines of a document and opens a section at
// every heading line. The first occurrence of a label wins; a repeated
// heading (a running page header, a cross reference at line start) is kept
// as text.
func SynthesizeSections(text string, act citation.Citation) []*models.Section {
	var (
		out     []*models.Section
		current *models.Section
		lines   []string
		seen    = make(map[string]bool)
	)
	flush := func() {
		if current != nil {
			buildOutline(current, textParagraphs(lines))
		}
		lines = nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		label, rest, ok := matchHeader(trimmed)
		if ok && !seen[label] {
			flush()
			seen[label] = true
			heading, body := splitHeading(rest)
			current = models.NewSection(act.WithSection(label), heading)
			current.Position = len(out) + 1
			out = append(out, current)
			if body != "" {
				lines = append(lines, body)
			}
			continue
		}
		if current != nil {
			lines = append(lines, line)
		}
	}
	flush()
	return out
}

// textParagraphs joins wrapped lines into paragraphs. A blank line or a
// line opening with a subsection marker starts a new paragraph.
func textParagraphs(lines []string) []string {
	var (
		out []string
		buf []string
	)
	emit := func() {
		if len(buf) > 0 {
			out = append(out, strings.Join(buf, " "))
			buf = nil
		}
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			emit()
		case reMarker.MatchString(line):
			emit()
			buf = append(buf, line)
		default:
			buf = append(buf, line)
		}
	}
	emit()
	return out
}
