// Package parsers turns raw payloads into document model nodes.
//
// Parsers are pure: the same bytes always yield the same tree. A payload
// that is not of the expected format fails with a MalformedSourceError. A
// payload of the right format that lacks an expected element yields a
// degraded node together with a StructuralMismatchError, so one broken
// fragment never costs the rest of the document.
package parsers

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"law_arch/internal/citation"
	"law_arch/internal/config"
	"law_arch/internal/errs"
	"law_arch/internal/models"
	urlqueue "law_arch/internal/url_queue"
)

var errEmptyPayload = errors.New("empty payload")

type Parser interface {
	Format() models.SourceFormat
	ParseSection(raw []byte, c citation.Citation) (*models.Section, error)
}

// DocumentParser splits a whole-act payload into its top level sections,
// synthesizing their citations from the content.
type DocumentParser interface {
	ParseDocument(raw []byte, act citation.Citation) ([]*models.Section, error)
}

// ActParser reads act metadata: title and section count.
type ActParser interface {
	ParseAct(raw []byte, act citation.Citation) (*models.Act, error)
}

// Registry resolves parser names. The built-in names are the source
// formats; custom parsers register under their own name and are selected
// through the parser field of a source configuration.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(string(models.FormatHTML), &HTMLParser{})
	r.Register(string(models.FormatCLML), &CLMLParser{})
	r.Register(string(models.FormatUSLM), &USLMParser{})
	r.Register(string(models.FormatPDF), &PDFParser{})
	r.Register(string(models.FormatJSON), &JSONParser{})
	return r
}

func (r *Registry) Register(name string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[name] = p
}

func (r *Registry) Get(name string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[name]
	return p, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.parsers))
}

var defaultParsers = map[config.SourceType]models.SourceFormat{
	config.SourceHTML: models.FormatHTML,
	config.SourceXML:  models.FormatCLML,
	config.SourceBulk: models.FormatPDF,
	config.SourceAPI:  models.FormatJSON,
}

// ForConfig returns the parser of a source: the configured override if any,
// else the default for its source type. The HTML parser picks up the
// source's selectors.
func (r *Registry) ForConfig(sc config.SourceConfig) (Parser, error) {
	name := sc.Parser
	if name == "" {
		name = string(defaultParsers[sc.SourceType])
	}
	p, ok := r.Get(name)
	if !ok {
		return nil, &errs.ConfigError{
			Subject: "source " + sc.Jurisdiction,
			Err:     fmt.Errorf("unknown parser %q", name),
		}
	}
	if _, isHTML := p.(*HTMLParser); isHTML {
		return &HTMLParser{
			ContentSelector: sc.ContentSelector,
			TitleSelector:   sc.TitleSelector,
			HistorySelector: sc.HistorySelector,
			BaseURL:         sc.BaseURL,
		}, nil
	}
	return p, nil
}

// stamp records provenance on the node and all its descendants.
func stamp(s *models.Section, format models.SourceFormat, checksum string) {
	s.SourceFormat = format
	s.RawChecksum = checksum
	for _, child := range s.Children {
		stamp(child, format, checksum)
	}
}

func checksum(raw []byte) string { return urlqueue.ComputeContentHash(raw) }

func malformed(format models.SourceFormat, err error) error {
	return &errs.MalformedSourceError{Format: string(format), Err: err}
}

func mismatch(format models.SourceFormat, missing string) error {
	return &errs.StructuralMismatchError{Format: string(format), Missing: missing}
}
