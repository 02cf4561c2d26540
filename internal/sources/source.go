// Package sources fetches raw payloads from government publishers.
//
// Every adapter implements Source. The fetch capabilities are separate
// interfaces because not every publisher offers them: a bulk PDF archive
// has no per-section URL, a directory listing has no section at all.
// Callers discover capabilities with a type assertion.
package sources

import (
	"context"
	"strconv"

	"law_arch/internal/citation"
	"law_arch/internal/config"
	"law_arch/internal/errs"
	urlqueue "law_arch/internal/url_queue"
)

type Source interface {
	Jurisdiction() string
	Kind() config.SourceType
	Config() config.SourceConfig
}

// TableOfContentsLister lists the citations published under a container
// in document order. Entries may be sections or, for sources that publish
// whole documents, acts.
type TableOfContentsLister interface {
	ListTableOfContents(ctx context.Context, container citation.Citation) ([]citation.Citation, error)
}

type SectionFetcher interface {
	FetchSection(ctx context.Context, c citation.Citation) (*Payload, error)
}

// ActFetcher returns the act-level document: metadata for structured
// sources, the whole text for bulk ones.
type ActFetcher interface {
	FetchAct(ctx context.Context, c citation.Citation) (*Payload, error)
}

// DocumentPublisher is implemented by sources whose act-level payload holds
// the full text of the act, so it can be split instead of fetched section by
// section.
type DocumentPublisher interface {
	PublishesDocuments() bool
}

type base struct {
	cfg    config.SourceConfig
	client *Client
}

func (b *base) Jurisdiction() string { return b.cfg.Jurisdiction }
func (b *base) Kind() config.SourceType { return b.cfg.SourceType }
func (b *base) Config() config.SourceConfig { return b.cfg }
func (b *base) Client() *Client { return b.client }

func (b *base) unsupported(op string) error {
	return &errs.UnsupportedError{Source: b.cfg.Jurisdiction, Operation: op}
}

// fetchTemplate expands pattern for c and fetches it relative to the base
// URL.
func (b *base) fetchTemplate(ctx context.Context, pattern string, c citation.Citation) (*Payload, error) {
	u, err := b.expand(ctx, pattern, c)
	if err != nil {
		return nil, err
	}
	return b.client.Get(ctx, u)
}

// expand fills pattern from c. The requested version, if any, answers to
// {version}.
func (b *base) expand(ctx context.Context, pattern string, c citation.Citation) (string, error) {
	vars := TemplateVars(c)
	if version := VersionFrom(ctx); version != "" {
		vars["version"] = version
	}
	path, err := urlqueue.ExpandTemplate(pattern, vars)
	if err != nil {
		return "", &errs.ConfigError{Subject: "source " + b.cfg.Jurisdiction, Err: err}
	}
	return urlqueue.JoinURL(b.cfg.BaseURL, path)
}

type versionKey struct{}

// WithVersion asks sources for the text in force at version: "enacted" or
// a date such as "2020-01-01". The empty version is the current text.
func WithVersion(ctx context.Context, version string) context.Context {
	if version == "" {
		return ctx
	}
	return context.WithValue(ctx, versionKey{}, version)
}

func VersionFrom(ctx context.Context) string {
	v, _ := ctx.Value(versionKey{}).(string)
	return v
}

// TemplateVars exposes the citation fields under the placeholder names
// used by URL templates. The container number answers to code, title and
// chapter alike.
func TemplateVars(c citation.Citation) map[string]string {
	vars := map[string]string{
		"code":    c.Number,
		"title":   c.Number,
		"chapter": c.Number,
		"act":     c.Number,
		"number":  c.Number,
		"series":  c.Series,
		"type":    c.Series,
		"section": c.Section,
	}
	if c.Year != 0 {
		vars["year"] = strconv.Itoa(c.Year)
	}
	return vars
}
