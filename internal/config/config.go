package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"law_arch/internal/errs"
)

type SourceType string

const (
	SourceHTML SourceType = "html"
	SourceXML  SourceType = "xml"
	SourceBulk SourceType = "bulk"
	SourceAPI  SourceType = "api"
)

// SourceConfig is the static description of one jurisdiction's publisher.
type SourceConfig struct {
	Jurisdiction        string            `yaml:"jurisdiction" validate:"required"`
	Name                string            `yaml:"name"`
	SourceType          SourceType        `yaml:"source_type" validate:"required,oneof=html xml bulk api"`
	BaseURL             string            `yaml:"base_url" validate:"required,url"`
	SectionURLPattern   string            `yaml:"section_url_pattern"`
	TOCURLPattern       string            `yaml:"toc_url_pattern"`
	ContentSelector     string            `yaml:"content_selector"`
	TitleSelector       string            `yaml:"title_selector"`
	HistorySelector     string            `yaml:"history_selector"`
	Codes               map[string]string `yaml:"codes"`
	PriorityCodes       []string          `yaml:"priority_codes"`
	RateLimit           float64           `yaml:"rate_limit" validate:"gte=0"`
	MaxRetries          *int              `yaml:"max_retries" validate:"omitempty,gte=0"`
	Parser              string            `yaml:"parser"`
	APIKey              string            `yaml:"api_key"`
	APIKeyEnv           string            `yaml:"api_key_env"`
	APIKeyParam         string            `yaml:"api_key_param"`
	Listing             string            `yaml:"listing" validate:"omitempty,oneof=drop"`
	DefaultSectionCount int               `yaml:"default_section_count" validate:"gte=0"`
	BreakerFailures     uint32            `yaml:"breaker_failures"`
	RespectRobots       bool              `yaml:"respect_robots"`
	// Version selects a point-in-time text where the publisher keeps
	// them: "enacted" or a date. Empty means the current text.
	Version string `yaml:"version"`
}

type DBConfig struct {
	Engine      string `yaml:"engine" validate:"required,oneof=memory mongo sqlite postgres"`
	Connection  string `yaml:"connection" validate:"required_unless=Engine memory"`
	Database    string `yaml:"database" validate:"required_if=Engine mongo"`
	Collections struct {
		Sections string `yaml:"sections"`
		Acts     string `yaml:"acts"`
	} `yaml:"collections"`
}

type LogicConfig struct {
	DelayMS              int    `yaml:"delay_ms" validate:"gte=0"`
	TimeoutSec           int    `yaml:"timeout_sec" validate:"gt=0"`
	MaxRetries           int    `yaml:"max_retries" validate:"gte=0"`
	RetryDelayMS         int    `yaml:"retry_delay_ms" validate:"gte=0"`
	MaxConcurrentWorkers int    `yaml:"max_concurrent_workers" validate:"gt=0"`
	UserAgent            string `yaml:"user_agent" validate:"required"`
	CacheDir             string `yaml:"cache_dir" validate:"required"`
	SourcesDir           string `yaml:"sources_dir"`
	DefaultSectionCount  int    `yaml:"default_section_count" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type ArchConfig struct {
	DB      DBConfig                `yaml:"db"`
	Logic   LogicConfig             `yaml:"logic"`
	Log     LogConfig               `yaml:"log"`
	Sources map[string]SourceConfig `yaml:"sources"`
}

const (
	EnvDBConnection = "LAW_ARCH_DB_CONNECTION"
	EnvCacheDir     = "LAW_ARCH_CACHE_DIR"
)

var validate = validator.New()

// Default returns a configuration usable without any file.
func Default() *ArchConfig {
	cfg := &ArchConfig{
		DB: DBConfig{Engine: "sqlite", Connection: "data/law_arch.db"},
		Logic: LogicConfig{
			DelayMS:              500,
			TimeoutSec:           30,
			MaxRetries:           3,
			RetryDelayMS:         1000,
			MaxConcurrentWorkers: 4,
			UserAgent:            "law_arch/1.0 (legal source archiver)",
			CacheDir:             "data/archive",
			SourcesDir:           "sources",
			DefaultSectionCount:  1000,
		},
		Log:     LogConfig{Level: "info"},
		Sources: map[string]SourceConfig{},
	}
	cfg.DB.Collections.Sections = "sections"
	cfg.DB.Collections.Acts = "acts"
	return cfg
}

// LoadConfig reads path over the defaults, applies environment overrides,
// merges the per-jurisdiction files from Logic.SourcesDir and validates the
// result.
func LoadConfig(path string) (*ArchConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigError{Subject: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &errs.ConfigError{Subject: path, Err: err}
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{}
	}
	applyEnv(cfg)

	if cfg.Logic.SourcesDir != "" {
		dir := cfg.Logic.SourcesDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		fromDir, err := LoadSources(dir)
		if err != nil {
			return nil, err
		}
		for j, sc := range fromDir {
			cfg.Sources[j] = sc
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *ArchConfig) {
	if v := os.Getenv(EnvDBConnection); v != "" {
		cfg.DB.Connection = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.Logic.CacheDir = v
	}
}

func (c *ArchConfig) Validate() error {
	if err := validate.Struct(c.DB); err != nil {
		return &errs.ConfigError{Subject: "db", Err: err}
	}
	if err := validate.Struct(c.Logic); err != nil {
		return &errs.ConfigError{Subject: "logic", Err: err}
	}
	if err := validate.Struct(c.Log); err != nil {
		return &errs.ConfigError{Subject: "log", Err: err}
	}
	normalized := make(map[string]SourceConfig, len(c.Sources))
	for key, sc := range c.Sources {
		if sc.Jurisdiction == "" {
			sc.Jurisdiction = key
		}
		sc.Jurisdiction = strings.ToLower(sc.Jurisdiction)
		if err := sc.Validate(); err != nil {
			return err
		}
		normalized[sc.Jurisdiction] = sc
	}
	c.Sources = normalized
	return nil
}

func (sc SourceConfig) Validate() error {
	if err := validate.Struct(sc); err != nil {
		return &errs.ConfigError{Subject: "source " + sc.Jurisdiction, Err: err}
	}
	return nil
}

// LoadSources reads every *.yaml file of dir as one SourceConfig. The file
// stem is the jurisdiction code unless the file names one.
func LoadSources(dir string) (map[string]SourceConfig, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, &errs.ConfigError{Subject: dir, Err: err}
	}
	sort.Strings(files)

	out := make(map[string]SourceConfig, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &errs.ConfigError{Subject: f, Err: err}
		}
		var sc SourceConfig
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return nil, &errs.ConfigError{Subject: f, Err: err}
		}
		if sc.Jurisdiction == "" {
			sc.Jurisdiction = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		}
		sc.Jurisdiction = strings.ToLower(sc.Jurisdiction)
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		out[sc.Jurisdiction] = sc
	}
	return out, nil
}

// Delay is the minimum spacing between two requests to the source.
func (sc SourceConfig) Delay(logic LogicConfig) time.Duration {
	if sc.RateLimit > 0 {
		return time.Duration(sc.RateLimit * float64(time.Second))
	}
	return time.Duration(logic.DelayMS) * time.Millisecond
}

func (sc SourceConfig) Retries(logic LogicConfig) int {
	if sc.MaxRetries != nil {
		return *sc.MaxRetries
	}
	return logic.MaxRetries
}

func (sc SourceConfig) SectionCountHint(logic LogicConfig) int {
	if sc.DefaultSectionCount > 0 {
		return sc.DefaultSectionCount
	}
	return logic.DefaultSectionCount
}

// ResolveAPIKey prefers the environment variable named by api_key_env.
func (sc SourceConfig) ResolveAPIKey() string {
	if sc.APIKeyEnv != "" {
		if v := os.Getenv(sc.APIKeyEnv); v != "" {
			return v
		}
	}
	return sc.APIKey
}

func (sc SourceConfig) DisplayName() string {
	if sc.Name != "" {
		return sc.Name
	}
	return sc.Jurisdiction
}

func (sc SourceConfig) String() string {
	return fmt.Sprintf("%s (%s, %s)", sc.DisplayName(), sc.Jurisdiction, sc.SourceType)
}
