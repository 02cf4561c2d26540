package sources

import (
	"context"
	"net/url"

	"law_arch/internal/citation"
	"law_arch/internal/errs"
)

const defaultAPIKeyParam = "api_key"

// APISource queries a JSON API. The key, when configured, travels as a
// query parameter.
type APISource struct {
	base
	apiKey string
}

func (s *APISource) FetchSection(ctx context.Context, c citation.Citation) (*Payload, error) {
	if s.cfg.SectionURLPattern == "" {
		return nil, s.unsupported("section fetch")
	}
	return s.get(ctx, s.cfg.SectionURLPattern, c)
}

func (s *APISource) FetchAct(ctx context.Context, c citation.Citation) (*Payload, error) {
	if s.cfg.TOCURLPattern == "" {
		return nil, s.unsupported("act fetch")
	}
	return s.get(ctx, s.cfg.TOCURLPattern, c.Parent())
}

// PublishesDocuments reports whether an act-level endpoint is configured.
func (s *APISource) PublishesDocuments() bool { return s.cfg.TOCURLPattern != "" }

func (s *APISource) get(ctx context.Context, pattern string, c citation.Citation) (*Payload, error) {
	raw, err := s.expand(ctx, pattern, c)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, &errs.ConfigError{Subject: "source " + s.cfg.Jurisdiction, Err: err}
		}
		param := s.cfg.APIKeyParam
		if param == "" {
			param = defaultAPIKeyParam
		}
		q := u.Query()
		q.Set(param, s.apiKey)
		u.RawQuery = q.Encode()
		raw = u.String()
	}
	return s.client.Get(ctx, raw)
}
