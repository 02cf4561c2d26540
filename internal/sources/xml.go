package sources

import (
	"context"
	"net/url"
	"strconv"

	"law_arch/internal/citation"
)

// XMLSource fetches structured legislation XML. Without a template the
// legislation.gov.uk scheme is used:
// {base}/{series}/{year}/{number}[/section/{section}][/{version}]/data.xml
// where version is the point in time carried by the context.
type XMLSource struct {
	base
}

func (s *XMLSource) FetchSection(ctx context.Context, c citation.Citation) (*Payload, error) {
	if s.cfg.SectionURLPattern != "" {
		return s.fetchTemplate(ctx, s.cfg.SectionURLPattern, c)
	}
	return s.client.Get(ctx, s.dataURL(c, VersionFrom(ctx)))
}

func (s *XMLSource) FetchAct(ctx context.Context, c citation.Citation) (*Payload, error) {
	act := c.Parent()
	if s.cfg.TOCURLPattern != "" {
		return s.fetchTemplate(ctx, s.cfg.TOCURLPattern, act)
	}
	// A section template means the publisher does not follow the
	// legislation.gov.uk scheme.
	if s.cfg.SectionURLPattern != "" {
		return nil, s.unsupported("act fetch")
	}
	return s.client.Get(ctx, s.dataURL(act, VersionFrom(ctx)))
}

// PublishesDocuments reports whether the act payload is the whole act: an
// act template is configured, or the legislation.gov.uk scheme is in use.
// Whether it can be split depends on the parser.
func (s *XMLSource) PublishesDocuments() bool {
	return s.cfg.TOCURLPattern != "" || s.cfg.SectionURLPattern == ""
}

func (s *XMLSource) dataURL(c citation.Citation, version string) string {
	path := c.Series + "/" + strconv.Itoa(c.Year) + "/" + c.Number
	if c.Section != "" {
		path += "/section/" + c.Section
	}
	if version != "" {
		path += "/" + url.PathEscape(version)
	}
	return joinPath(s.cfg.BaseURL, path+"/data.xml")
}
