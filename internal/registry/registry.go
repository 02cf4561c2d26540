// Package registry maps jurisdiction codes to their source configuration and
// hands out one adapter per jurisdiction, so every job against a source
// shares its rate limiter.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"law_arch/internal/config"
	"law_arch/internal/errs"
	"law_arch/internal/parsers"
	"law_arch/internal/sources"
)

// ClientFactory builds the HTTP client of one source.
type ClientFactory func(sc config.SourceConfig) *sources.Client

type Option func(*Registry)

// WithClientFactory replaces the default client construction, for example to
// inject a transport.
func WithClientFactory(f ClientFactory) Option {
	return func(r *Registry) { r.newClient = f }
}

func WithParsers(p *parsers.Registry) Option {
	return func(r *Registry) { r.parsers = p }
}

type Registry struct {
	mu        sync.Mutex
	configs   map[string]config.SourceConfig
	adapters  map[string]sources.Source
	parsers   *parsers.Registry
	newClient ClientFactory
	logger    *zap.Logger
}

func New(configs map[string]config.SourceConfig, logic config.LogicConfig, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		configs:  make(map[string]config.SourceConfig, len(configs)),
		adapters: make(map[string]sources.Source),
		parsers:  parsers.NewRegistry(),
		logger:   logger,
	}
	r.newClient = func(sc config.SourceConfig) *sources.Client {
		return sources.NewClientFor(sc, logic, r.logger)
	}
	for _, opt := range opts {
		opt(r)
	}
	for j, sc := range configs {
		if sc.Jurisdiction == "" {
			sc.Jurisdiction = j
		}
		sc.Jurisdiction = normalize(sc.Jurisdiction)
		r.configs[sc.Jurisdiction] = sc
	}
	return r
}

func normalize(j string) string { return strings.ToLower(strings.TrimSpace(j)) }

// Register adds or replaces a jurisdiction. A cached adapter for it is
// discarded.
func (r *Registry) Register(sc config.SourceConfig) error {
	sc.Jurisdiction = normalize(sc.Jurisdiction)
	if err := sc.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[sc.Jurisdiction] = sc
	delete(r.adapters, sc.Jurisdiction)
	r.logger.Info("Source registered", zap.Stringer("source", sc))
	return nil
}

func (r *Registry) Config(jurisdiction string) (config.SourceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config(normalize(jurisdiction))
}

func (r *Registry) config(j string) (config.SourceConfig, error) {
	sc, ok := r.configs[j]
	if !ok {
		return config.SourceConfig{}, &errs.ConfigError{
			Subject: "jurisdiction " + j,
			Err:     fmt.Errorf("not registered"),
		}
	}
	return sc, nil
}

// Source returns the adapter of a jurisdiction, building it on first use.
func (r *Registry) Source(jurisdiction string) (sources.Source, error) {
	j := normalize(jurisdiction)
	r.mu.Lock()
	defer r.mu.Unlock()
	if src, ok := r.adapters[j]; ok {
		return src, nil
	}
	sc, err := r.config(j)
	if err != nil {
		return nil, err
	}
	src, err := sources.NewSource(sc, r.newClient(sc))
	if err != nil {
		return nil, err
	}
	r.adapters[j] = src
	return src, nil
}

func (r *Registry) Parser(jurisdiction string) (parsers.Parser, error) {
	sc, err := r.Config(jurisdiction)
	if err != nil {
		return nil, err
	}
	return r.parsers.ForConfig(sc)
}

// Parsers exposes the parser registry so custom parsers can be added.
func (r *Registry) Parsers() *parsers.Registry { return r.parsers }

// JurisdictionInfo describes a registered jurisdiction for listings.
type JurisdictionInfo struct {
	Jurisdiction string            `json:"jurisdiction"`
	Name         string            `json:"name"`
	SourceType   config.SourceType `json:"source_type"`
	Codes        []string          `json:"codes"`
}

// Supported describes every registered jurisdiction, sorted by code. Codes
// are the configured container keys in sorted order.
func (r *Registry) Supported() []JurisdictionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := lo.MapToSlice(r.configs, func(j string, sc config.SourceConfig) JurisdictionInfo {
		codes := lo.Keys(sc.Codes)
		slices.Sort(codes)
		return JurisdictionInfo{Jurisdiction: j, Name: sc.Name, SourceType: sc.SourceType, Codes: codes}
	})
	slices.SortFunc(out, func(a, b JurisdictionInfo) int { return strings.Compare(a.Jurisdiction, b.Jurisdiction) })
	return out
}

// Jurisdictions lists the registered codes in sorted order.
func (r *Registry) Jurisdictions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := lo.Keys(r.configs)
	slices.Sort(keys)
	return keys
}
