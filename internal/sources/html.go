package sources

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gocolly/colly"

	"law_arch/internal/citation"
	"law_arch/internal/errs"
	urlqueue "law_arch/internal/url_queue"
)

// HTMLSource scrapes sections from pages built out of URL templates.
type HTMLSource struct {
	base
}

func (s *HTMLSource) FetchSection(ctx context.Context, c citation.Citation) (*Payload, error) {
	if s.cfg.SectionURLPattern == "" {
		return nil, s.unsupported("section fetch")
	}
	return s.fetchTemplate(ctx, s.cfg.SectionURLPattern, c)
}

// ListTableOfContents visits the container's TOC page and keeps every
// same-host link that matches the section URL template.
func (s *HTMLSource) ListTableOfContents(ctx context.Context, container citation.Citation) ([]citation.Citation, error) {
	if s.cfg.TOCURLPattern == "" || s.cfg.SectionURLPattern == "" {
		return nil, s.unsupported("table of contents")
	}
	tocURL, err := s.expand(ctx, s.cfg.TOCURLPattern, container)
	if err != nil {
		return nil, err
	}
	fixed := TemplateVars(container)
	delete(fixed, "section")
	matcher, err := urlqueue.TemplateMatcher(s.cfg.SectionURLPattern, fixed)
	if err != nil {
		return nil, &errs.ConfigError{Subject: "source " + s.cfg.Jurisdiction, Err: err}
	}

	collector := colly.NewCollector(
		colly.UserAgent(s.client.UserAgent()),
		colly.MaxDepth(1),
	)
	collector.SetRequestTimeout(s.client.http.Timeout)
	if s.client.http.Transport != nil {
		collector.WithTransport(s.client.http.Transport)
	}

	targets := urlqueue.NewTargetQueue()
	var status int

	collector.OnRequest(func(r *colly.Request) {
		if err := s.client.Wait(ctx); err != nil {
			r.Abort()
		}
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := urlqueue.NormalizeURL(e.Request.AbsoluteURL(e.Attr("href")))
		if !sameHost(link, urlqueue.NormalizeURL(e.Request.URL.String())) {
			return
		}
		vars, ok := urlqueue.MatchTemplate(matcher, link)
		if !ok || vars["section"] == "" {
			return
		}
		targets.Add(container.WithSection(vars["section"]))
	})
	collector.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
	})

	visitErr := collector.Visit(tocURL)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if visitErr != nil {
		return nil, tocError(tocURL, status, visitErr)
	}
	return targets.Drain(), nil
}

func sameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil || ua.Host == "" {
		return false
	}
	ub, err := url.Parse(b)
	return err == nil && ua.Host == ub.Host
}

func tocError(tocURL string, status int, err error) error {
	if status != 0 {
		if statusErr := statusError(tocURL, status); statusErr != nil {
			return statusErr
		}
	}
	var fetchErr *errs.FetchError
	if errors.As(err, &fetchErr) {
		return err
	}
	return &errs.FetchError{URL: tocURL, StatusCode: status, Transient: status == 0 || status >= http.StatusInternalServerError, Err: err}
}
