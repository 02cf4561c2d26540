package sources

import (
	"context"
	"fmt"
	"strings"

	"law_arch/internal/citation"
	"law_arch/internal/errs"
	"law_arch/internal/models"
	"law_arch/internal/parsers"
)

// BulkSource publishes one document per title or chapter. Sections are
// not addressable, so only act-level fetch is offered and the caller has to
// split the document itself.
type BulkSource struct {
	base
}

func (s *BulkSource) FetchAct(ctx context.Context, c citation.Citation) (*Payload, error) {
	pattern := s.cfg.SectionURLPattern
	if pattern == "" {
		return nil, s.unsupported("act fetch")
	}
	return s.fetchTemplate(ctx, pattern, c.Parent())
}

func (s *BulkSource) PublishesDocuments() bool { return true }

const defaultDropListing = "/pub/irs-drop/"

// DropListingSource is a bulk source whose table of contents is an HTTP
// directory listing of guidance PDFs.
type DropListingSource struct {
	BulkSource
}

// ListTableOfContents returns one act citation per guidance document. A
// container year restricts the listing to that year; the configured codes
// restrict it to those series.
func (s *DropListingSource) ListTableOfContents(ctx context.Context, container citation.Citation) ([]citation.Citation, error) {
	docs, err := s.ListDocuments(ctx, parsers.DropFilter{Year: container.Year, Types: s.seriesFilter()})
	if err != nil {
		return nil, err
	}
	out := make([]citation.Citation, len(docs))
	for i, d := range docs {
		out[i] = d.Citation
	}
	return out, nil
}

func (s *DropListingSource) ListDocuments(ctx context.Context, filter parsers.DropFilter) ([]models.GuidanceDocument, error) {
	listing := s.cfg.TOCURLPattern
	if listing == "" {
		listing = defaultDropListing
	}
	listingURL := joinPath(s.cfg.BaseURL, listing)
	if strings.HasSuffix(listing, "/") && !strings.HasSuffix(listingURL, "/") {
		listingURL += "/"
	}
	payload, err := s.client.Get(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	filter.Jurisdiction = s.cfg.Jurisdiction
	filter.BaseURL = listingURL
	return parsers.ParseDropListing(payload.Body, filter)
}

// FetchAct downloads the PDF named after the guidance citation, for
// example rp-24-40.pdf for Rev. Proc. 2024-40.
func (s *DropListingSource) FetchAct(ctx context.Context, c citation.Citation) (*Payload, error) {
	if s.cfg.SectionURLPattern != "" {
		return s.BulkSource.FetchAct(ctx, c)
	}
	filename, err := GuidanceFilename(c)
	if err != nil {
		return nil, err
	}
	listing := s.cfg.TOCURLPattern
	if listing == "" {
		listing = defaultDropListing
	}
	return s.client.Get(ctx, joinPath(joinPath(s.cfg.BaseURL, listing), filename))
}

func (s *DropListingSource) seriesFilter() []string {
	var series []string
	for code := range s.cfg.Codes {
		series = append(series, strings.ToLower(code))
	}
	return series
}

// GuidanceFilename derives the drop filename of a guidance citation.
func GuidanceFilename(c citation.Citation) (string, error) {
	year, seq, ok := strings.Cut(c.Number, "-")
	if !ok || c.Series == "" || len(year) != 4 {
		return "", &errs.CitationFormatError{
			Jurisdiction: c.Jurisdiction,
			Raw:          c.String(),
			Reason:       "not a guidance document number",
		}
	}
	return fmt.Sprintf("%s-%s-%s.pdf", c.Series, year[2:], seq), nil
}
