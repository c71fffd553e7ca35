// engine/internal/config/config.go
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"phdhunt-engine/internal/domain"
)

//go:embed default.yml
var defaultYAML []byte

type Rule struct {
	Tag string   `yaml:"tag" toml:"tag" json:"tag"`
	Any []string `yaml:"any" toml:"any" json:"any"`
}

type Feed struct {
	Region string `yaml:"region" toml:"region" json:"region"`
	URL    string `yaml:"url" toml:"url" json:"url"`
}

type SourceConfig struct {
	MaxPages int    `yaml:"max_pages" toml:"max_pages" json:"max_pages"`
	Feeds    []Feed `yaml:"feeds" toml:"feeds" json:"feeds"`
}

type StoreConfig struct {
	Driver               string `yaml:"driver" toml:"driver" json:"driver"`
	DSN                  string `yaml:"dsn" toml:"dsn" json:"dsn"`
	AuthTokenFromKeyring bool   `yaml:"auth_token_from_keyring" toml:"auth_token_from_keyring" json:"auth_token_from_keyring"`
}

type LockConfig struct {
	Backend                  string `yaml:"backend" toml:"backend" json:"backend"`
	RedisAddr                string `yaml:"redis_addr" toml:"redis_addr" json:"redis_addr"`
	Key                      string `yaml:"key" toml:"key" json:"key"`
	TTLSeconds               int    `yaml:"ttl_seconds" toml:"ttl_seconds" json:"ttl_seconds"`
	RedisPasswordFromKeyring bool   `yaml:"redis_password_from_keyring" toml:"redis_password_from_keyring" json:"redis_password_from_keyring"`
}

type ScrapeConfig struct {
	MaxPages               int     `yaml:"max_pages" toml:"max_pages" json:"max_pages"`
	RequestDelaySeconds    float64 `yaml:"request_delay_seconds" toml:"request_delay_seconds" json:"request_delay_seconds"`
	RequestTimeoutSeconds  int     `yaml:"request_timeout_seconds" toml:"request_timeout_seconds" json:"request_timeout_seconds"`
	MaxRetries             int     `yaml:"max_retries" toml:"max_retries" json:"max_retries"`
	RetryBackoffMS         int     `yaml:"retry_backoff_ms" toml:"retry_backoff_ms" json:"retry_backoff_ms"`
	RetryMaxBackoffMS      int     `yaml:"retry_max_backoff_ms" toml:"retry_max_backoff_ms" json:"retry_max_backoff_ms"`
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures" toml:"max_consecutive_failures" json:"max_consecutive_failures"`
	Workers                int     `yaml:"workers" toml:"workers" json:"workers"`
	UserAgent              string  `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
}

type ClassifyConfig struct {
	FundingKeywords map[string][]string `yaml:"funding_keywords" toml:"funding_keywords" json:"funding_keywords"`
	Disciplines     []Rule              `yaml:"disciplines" toml:"disciplines" json:"disciplines"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" toml:"port" json:"port"`
		DataDir string `yaml:"data_dir" toml:"data_dir" json:"data_dir"`
	} `yaml:"app" toml:"app" json:"app"`

	Store StoreConfig `yaml:"store" toml:"store" json:"store"`
	Lock  LockConfig  `yaml:"lock" toml:"lock" json:"lock"`

	Scrape ScrapeConfig `yaml:"scrape" toml:"scrape" json:"scrape"`

	Sources struct {
		Enabled       []string     `yaml:"enabled" toml:"enabled" json:"enabled"`
		Euraxess      SourceConfig `yaml:"euraxess" toml:"euraxess" json:"euraxess"`
		ScholarshipDb SourceConfig `yaml:"scholarshipdb" toml:"scholarshipdb" json:"scholarshipdb"`
		FindAPhD      SourceConfig `yaml:"findaphd" toml:"findaphd" json:"findaphd"`
	} `yaml:"sources" toml:"sources" json:"sources"`

	Classify ClassifyConfig `yaml:"classify" toml:"classify" json:"classify"`

	Schedule struct {
		Enabled   bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
		TimeOfDay string `yaml:"time_of_day" toml:"time_of_day" json:"time_of_day"`
		Timezone  string `yaml:"timezone" toml:"timezone" json:"timezone"`
	} `yaml:"schedule" toml:"schedule" json:"schedule"`

	Events struct {
		KafkaBrokers []string `yaml:"kafka_brokers" toml:"kafka_brokers" json:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic" toml:"kafka_topic" json:"kafka_topic"`
	} `yaml:"events" toml:"events" json:"events"`

	Logging struct {
		Level  string `yaml:"level" toml:"level" json:"level"`
		Format string `yaml:"format" toml:"format" json:"format"`
	} `yaml:"logging" toml:"logging" json:"logging"`

	Telemetry struct {
		OTLPHTTPEndpoint string `yaml:"otlp_http_endpoint" toml:"otlp_http_endpoint" json:"otlp_http_endpoint"`
	} `yaml:"telemetry" toml:"telemetry" json:"telemetry"`
}

// Default returns the built-in configuration (the embedded default.yml).
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default.yml is invalid: %v", err))
	}
	return cfg
}

// Load decodes path on top of Default(), so keys missing from the file keep
// their default values. Files ending in .toml are decoded as TOML, anything
// else as YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Scrape.RequestDelaySeconds * float64(time.Second))
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scrape.RequestTimeoutSeconds) * time.Second
}

func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.Scrape.RetryBackoffMS) * time.Millisecond
}

func (c Config) RetryMaxBackoff() time.Duration {
	return time.Duration(c.Scrape.RetryMaxBackoffMS) * time.Millisecond
}

// Source returns the per-source section for name.
func (c Config) Source(name domain.SourceName) (SourceConfig, bool) {
	switch name {
	case domain.SourceEuraxess:
		return c.Sources.Euraxess, true
	case domain.SourceScholarshipDb:
		return c.Sources.ScholarshipDb, true
	case domain.SourceFindAPhD:
		return c.Sources.FindAPhD, true
	}
	return SourceConfig{}, false
}

// MaxPages is the page cap for one source: its own max_pages, else scrape.max_pages.
func (c Config) MaxPages(name domain.SourceName) int {
	if sc, ok := c.Source(name); ok && sc.MaxPages > 0 {
		return sc.MaxPages
	}
	return c.Scrape.MaxPages
}

func (c Config) EnabledSources() []domain.SourceName {
	out := make([]domain.SourceName, 0, len(c.Sources.Enabled))
	for _, s := range c.Sources.Enabled {
		out = append(out, domain.SourceName(strings.ToLower(strings.TrimSpace(s))))
	}
	return out
}

func (c Config) DBPath() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	return filepath.Join(c.App.DataDir, "phdhunt.db")
}
