package parsers

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"law_arch/internal/citation"
	"law_arch/internal/models"
)

const defaultContentSelector = "body"

// HTMLParser extracts a section from a scraped statute page. Paragraphs
// opening with "(a)" or "(1)" become subsections.
type HTMLParser struct {
	ContentSelector string
	TitleSelector   string
	// HistorySelector picks the enactment and amendment notes, which are
	// kept apart from the provision text.
	HistorySelector string
	BaseURL         string
}

func (p *HTMLParser) Format() models.SourceFormat { return models.FormatHTML }

func (p *HTMLParser) ParseSection(raw []byte, c citation.Citation) (*models.Section, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, malformed(models.FormatHTML, errEmptyPayload)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, malformed(models.FormatHTML, err)
	}

	section := models.NewSection(c, p.heading(doc, raw))
	section.History = p.history(doc)
	defer stamp(section, models.FormatHTML, checksum(raw))

	selector := p.ContentSelector
	if selector == "" {
		selector = defaultContentSelector
	}
	content := doc.Find(selector).First()
	if content.Length() == 0 {
		return section, mismatch(models.FormatHTML, "content "+selector)
	}

	// Headings are already captured; keep them out of the body text.
	content = content.Clone()
	content.Find("script, style, nav, h1, " + p.titleSelector()).Remove()
	if p.HistorySelector != "" {
		content.Find(p.HistorySelector).Remove()
	}

	paragraphs := paragraphTexts(content)
	if len(paragraphs) == 0 {
		return section, mismatch(models.FormatHTML, "provision text")
	}
	buildOutline(section, paragraphs)
	return section, nil
}

func (p *HTMLParser) titleSelector() string {
	if p.TitleSelector == "" {
		return "h1"
	}
	return p.TitleSelector
}

// heading prefers the configured title selector, then the first h1, then
// the readability title of the page.
func (p *HTMLParser) heading(doc *goquery.Document, raw []byte) string {
	for _, sel := range []string{p.TitleSelector, "h1"} {
		if sel == "" {
			continue
		}
		if text := normalizeSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	pageURL, err := url.Parse(p.BaseURL)
	if err != nil || p.BaseURL == "" {
		pageURL = &url.URL{Scheme: "https", Host: "localhost"}
	}
	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err != nil {
		return ""
	}
	return normalizeSpace(article.Title)
}

func (p *HTMLParser) history(doc *goquery.Document) []models.TextSpan {
	if p.HistorySelector == "" {
		return nil
	}
	var notes []string
	doc.Find(p.HistorySelector).Each(func(_ int, s *goquery.Selection) {
		notes = append(notes, paragraphTexts(s)...)
	})
	return spans(notes...)
}

// paragraphTexts returns the text of each block of the selection, falling
// back on blank-line separated text when the markup has no blocks.
func paragraphTexts(sel *goquery.Selection) []string {
	var out []string
	sel.Find("p, li, div.para, div.paragraph").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := normalizeSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	if len(out) > 0 {
		return out
	}
	for _, block := range strings.Split(sel.Text(), "\n\n") {
		if text := normalizeSpace(block); text != "" {
			out = append(out, text)
		}
	}
	return out
}
