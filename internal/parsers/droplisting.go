package parsers

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"law_arch/internal/citation"
	"law_arch/internal/models"
	urlqueue "law_arch/internal/url_queue"
)

const DefaultGuidanceJurisdiction = "us-irs"

// reDropFile matches guidance filenames such as rp-24-40.pdf.
var reDropFile = regexp.MustCompile(`^(rp|rr|n|a)-(\d{2})-(\d+)\.pdf$`)

var guidanceTypes = map[string]models.GuidanceType{
	"rp": models.GuidanceRevProc,
	"rr": models.GuidanceRevRul,
	"n":  models.GuidanceNotice,
	"a":  models.GuidanceAnnouncement,
}

// GuidanceSeries returns the filename prefix of a guidance type.
func GuidanceSeries(t models.GuidanceType) string {
	for series, gt := range guidanceTypes {
		if gt == t {
			return series
		}
	}
	return ""
}

// DropFilter narrows a drop listing. Zero values match everything.
type DropFilter struct {
	Jurisdiction string
	// BaseURL resolves relative links into document URLs.
	BaseURL string
	Year    int
	// Types holds series prefixes ("rp", "n") or guidance type names.
	Types []string
}

func (f DropFilter) accepts(series string, year int) bool {
	if f.Year != 0 && f.Year != year {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	return slices.ContainsFunc(f.Types, func(t string) bool {
		return strings.EqualFold(t, series) || strings.EqualFold(t, string(guidanceTypes[series]))
	})
}

// ParseDropListing reads an HTML directory listing of guidance PDFs. Links
// that are not guidance documents (publications, forms, instructions) are
// ignored; a document linked twice is reported once.
func ParseDropListing(raw []byte, filter DropFilter) ([]models.GuidanceDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, malformed(models.FormatHTML, err)
	}
	jurisdiction := filter.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = DefaultGuidanceJurisdiction
	}

	var out []models.GuidanceDocument
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		filename := path.Base(strings.TrimSpace(href))
		m := reDropFile.FindStringSubmatch(strings.ToLower(filename))
		if m == nil {
			return
		}
		series := m[1]
		yy, _ := strconv.Atoi(m[2])
		year := 2000 + yy
		number := fmt.Sprintf("%d-%s", year, m[3])
		if seen[series+number] || !filter.accepts(series, year) {
			return
		}
		seen[series+number] = true

		docURL := href
		if filter.BaseURL != "" {
			if resolved, err := urlqueue.JoinURL(filter.BaseURL, href); err == nil {
				docURL = resolved
			}
		}
		out = append(out, models.GuidanceDocument{
			Type:     guidanceTypes[series],
			Number:   number,
			Year:     year,
			Filename: strings.ToLower(filename),
			URL:      docURL,
			Citation: citation.NewAct(jurisdiction, series, year, number),
		})
	})
	return out, nil
}
