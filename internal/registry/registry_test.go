package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"law_arch/internal/config"
	"law_arch/internal/errs"
	"law_arch/internal/parsers"
	"law_arch/internal/registry"
	"law_arch/internal/sources"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	cfg := map[string]config.SourceConfig{
		"UK": {SourceType: config.SourceXML, BaseURL: "https://www.legislation.gov.uk"},
		"us-oh": {
			Jurisdiction:      "us-oh",
			SourceType:        config.SourceHTML,
			BaseURL:           "https://codes.ohio.gov",
			SectionURLPattern: "/ohio-revised-code/section-{section}",
			ContentSelector:   "section.laws-body",
		},
	}
	return registry.New(cfg, config.Default().Logic, zap.NewNop())
}

func TestSourceIsCachedPerJurisdiction(t *testing.T) {
	r := newRegistry(t)

	first, err := r.Source("us-oh")
	require.NoError(t, err)
	second, err := r.Source("US-OH ")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.IsType(t, &sources.HTMLSource{}, first)

	uk, err := r.Source("uk")
	require.NoError(t, err)
	assert.IsType(t, &sources.XMLSource{}, uk)
	assert.Equal(t, "uk", uk.Jurisdiction())
}

func TestUnknownJurisdictionIsConfigError(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Source("us-zz")
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
	_, err = r.Parser("us-zz")
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
}

func TestParserFollowsSourceConfig(t *testing.T) {
	r := newRegistry(t)

	p, err := r.Parser("us-oh")
	require.NoError(t, err)
	html, ok := p.(*parsers.HTMLParser)
	require.True(t, ok)
	assert.Equal(t, "section.laws-body", html.ContentSelector)

	p, err = r.Parser("uk")
	require.NoError(t, err)
	assert.IsType(t, &parsers.CLMLParser{}, p)
}

func TestRegisterReplacesAdapter(t *testing.T) {
	r := newRegistry(t)
	before, err := r.Source("uk")
	require.NoError(t, err)

	require.NoError(t, r.Register(config.SourceConfig{
		Jurisdiction: "uk",
		SourceType:   config.SourceXML,
		BaseURL:      "https://mirror.example.org",
		Parser:       "uslm",
	}))
	after, err := r.Source("uk")
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, "https://mirror.example.org", after.Config().BaseURL)

	p, err := r.Parser("uk")
	require.NoError(t, err)
	assert.IsType(t, &parsers.USLMParser{}, p)

	err = r.Register(config.SourceConfig{Jurisdiction: "bad", SourceType: "ftp", BaseURL: "x"})
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
	assert.Equal(t, []string{"uk", "us-oh"}, r.Jurisdictions())
}

func TestSupportedDescribesEveryJurisdiction(t *testing.T) {
	r := registry.New(map[string]config.SourceConfig{
		"us-oh": {
			Name:       "Ohio",
			SourceType: config.SourceHTML,
			BaseURL:    "https://codes.ohio.gov",
			Codes:      map[string]string{"57": "Taxation", "51": "Public Welfare"},
		},
		"UK": {Name: "United Kingdom", SourceType: config.SourceXML, BaseURL: "https://www.legislation.gov.uk"},
	}, config.Default().Logic, zap.NewNop())

	assert.Equal(t, []registry.JurisdictionInfo{
		{Jurisdiction: "uk", Name: "United Kingdom", SourceType: config.SourceXML, Codes: []string{}},
		{Jurisdiction: "us-oh", Name: "Ohio", SourceType: config.SourceHTML, Codes: []string{"51", "57"}},
	}, r.Supported())

	require.NoError(t, r.Register(config.SourceConfig{Jurisdiction: "us-co", Name: "Colorado", SourceType: config.SourceBulk, BaseURL: "https://example.org"}))
	got := r.Supported()
	require.Len(t, got, 3)
	assert.Equal(t, "us-co", got[1].Jurisdiction)
}
