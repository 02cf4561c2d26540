package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"law_arch/internal/config"
	"law_arch/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadConfigMergesSourcesDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
db:
  engine: sqlite
  connection: arch.db
logic:
  delay_ms: 250
  max_retries: 2
  sources_dir: sources
sources:
  us-oh:
    source_type: html
    base_url: https://codes.ohio.gov
    history_selector: div.laws-notice
`)
	writeFile(t, filepath.Join(dir, "sources", "uk.yaml"), `
name: United Kingdom
source_type: xml
base_url: https://www.legislation.gov.uk
rate_limit: 0.2
max_retries: 0
version: enacted
`)

	cfg, err := config.LoadConfig(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Engine)
	assert.Equal(t, 30, cfg.Logic.TimeoutSec, "defaults survive partial files")
	require.Contains(t, cfg.Sources, "uk")
	require.Contains(t, cfg.Sources, "us-oh")

	uk := cfg.Sources["uk"]
	assert.Equal(t, config.SourceXML, uk.SourceType)
	assert.Equal(t, 200*time.Millisecond, uk.Delay(cfg.Logic))
	assert.Equal(t, 0, uk.Retries(cfg.Logic))
	assert.Equal(t, "enacted", uk.Version)

	oh := cfg.Sources["us-oh"]
	assert.Equal(t, "us-oh", oh.Jurisdiction)
	assert.Equal(t, 250*time.Millisecond, oh.Delay(cfg.Logic))
	assert.Equal(t, 2, oh.Retries(cfg.Logic))
	assert.Equal(t, 1000, oh.SectionCountHint(cfg.Logic))
	assert.Equal(t, "div.laws-notice", oh.HistorySelector)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "db:\n  engine: postgres\n  connection: postgres://localhost/x\n")
	t.Setenv(config.EnvDBConnection, "postgres://db.internal/arch")

	cfg, err := config.LoadConfig(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.internal/arch", cfg.DB.Connection)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.ArchConfig)
	}{
		{"unknown engine", func(c *config.ArchConfig) { c.DB.Engine = "cassandra" }},
		{"mongo without database", func(c *config.ArchConfig) { c.DB.Engine = "mongo" }},
		{"no workers", func(c *config.ArchConfig) { c.Logic.MaxConcurrentWorkers = 0 }},
		{"bad source type", func(c *config.ArchConfig) {
			c.Sources["x"] = config.SourceConfig{SourceType: "ftp", BaseURL: "https://example.org"}
		}},
		{"missing base url", func(c *config.ArchConfig) {
			c.Sources["x"] = config.SourceConfig{SourceType: config.SourceHTML}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var configErr *errs.ConfigError
			require.True(t, errors.As(err, &configErr), "got %v", err)
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	sc := config.SourceConfig{APIKey: "inline", APIKeyEnv: "LAW_ARCH_TEST_KEY"}
	assert.Equal(t, "inline", sc.ResolveAPIKey())
	t.Setenv("LAW_ARCH_TEST_KEY", "from-env")
	assert.Equal(t, "from-env", sc.ResolveAPIKey())
}
