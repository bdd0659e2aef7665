package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv is the environment variable consulted when no api_key is configured.
const APIKeyEnv = "NEWSDATA_API_KEY"

// Config holds all headline configuration.
type Config struct {
	Listen     string           `yaml:"listen"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Categories CategoriesConfig `yaml:"categories"`
	Cache      CacheConfig      `yaml:"cache"`
	FetchLog   FetchLogConfig   `yaml:"fetch_log"`
	Log        LogConfig        `yaml:"log"`
}

// UpstreamConfig describes the news API and the pooled client limits.
type UpstreamConfig struct {
	URL                string        `yaml:"url"`
	APIKey             string        `yaml:"api_key"`
	Language           string        `yaml:"language"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
}

// CategoriesConfig maps abstract category tokens to upstream tokens.
type CategoriesConfig struct {
	// Default is the upstream token used for unrecognized categories.
	Default string `yaml:"default"`
	// Region is the token that selects country-scoped content.
	Region         string            `yaml:"region"`
	DefaultCountry string            `yaml:"default_country"`
	Mapping        map[string]string `yaml:"mapping"`
}

// CacheConfig controls the in-memory content cache.
type CacheConfig struct {
	Freshness time.Duration `yaml:"freshness"`
	// Coalesce collapses concurrent refreshes of one fingerprint into a single upstream call.
	Coalesce bool `yaml:"coalesce"`
}

// FetchLogConfig controls the SQLite log of upstream attempts.
type FetchLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultMapping is the category table used when none is configured.
func DefaultMapping() map[string]string {
	return map[string]string{
		"business":      "business",
		"entertainment": "entertainment",
		"general":       "top",
		"health":        "health",
		"science":       "science",
		"sports":        "sports",
		"technology":    "technology",
	}
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Upstream: UpstreamConfig{
			URL:                "https://newsdata.io/api/1/news",
			APIKey:             os.Getenv(APIKeyEnv),
			Language:           "en",
			Timeout:            5 * time.Second,
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Categories: CategoriesConfig{
			Default:        "top",
			Region:         "region",
			DefaultCountry: "in",
			Mapping:        DefaultMapping(),
		},
		Cache: CacheConfig{
			Freshness: 15 * time.Minute,
		},
		FetchLog: FetchLogConfig{
			Enabled:       false,
			DBPath:        "headline.db",
			RetentionDays: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file, loading a sibling .env file first and
// expanding environment variables. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
	}
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		// yaml.v3 merges into non-nil maps; a configured table replaces the defaults.
		cfg.Categories.Mapping = nil
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.Upstream.APIKey == "" {
		cfg.Upstream.APIKey = os.Getenv(APIKeyEnv)
	}
	if len(cfg.Categories.Mapping) == 0 {
		cfg.Categories.Mapping = DefaultMapping()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for missing or out-of-range values.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.Upstream),
		validation.Field(&c.Categories),
		validation.Field(&c.Cache),
		validation.Field(&c.FetchLog),
		validation.Field(&c.Log),
	)
}

// Validate implements validation.Validatable.
func (u UpstreamConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.URL, validation.Required, is.URL),
		validation.Field(&u.APIKey, validation.Required.Error("is required (set "+APIKeyEnv+")")),
		validation.Field(&u.Language, validation.Required),
		validation.Field(&u.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&u.MaxConnections, validation.Required, validation.Min(1)),
		validation.Field(&u.MaxIdleConnections, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (c CategoriesConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Default, validation.Required),
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.DefaultCountry, validation.Required, validation.Length(2, 2)),
	)
}

// Validate implements validation.Validatable.
func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Freshness, validation.Required, validation.Min(time.Second)),
	)
}

// Validate implements validation.Validatable.
func (f FetchLogConfig) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.DBPath, validation.When(f.Enabled, validation.Required)),
		validation.Field(&f.RetentionDays, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "warning", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}
