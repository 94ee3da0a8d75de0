// ABOUTME: Configuration loading and parsing for portalbot
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete portalbot configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Index    IndexConfig    `yaml:"index"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Chat     ChatConfig     `yaml:"chat"`
	Seed     SeedConfig     `yaml:"seed"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
// When JWTSecret is empty the mutating API endpoints are unauthenticated.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// IndexConfig holds vector index configuration
type IndexConfig struct {
	Path string `yaml:"path"`
	// Embedder selects the embedding backend: "local" (default) or "openai"
	Embedder string `yaml:"embedder"`
	// EmbedderURL is the base URL of an OpenAI-compatible embeddings API
	EmbedderURL string `yaml:"embedder_url"`
	// EmbedderModel names the model when using the openai embedder
	EmbedderModel string `yaml:"embedder_model"`
}

// IngestConfig holds crawler and content-processing configuration
type IngestConfig struct {
	MaxPages   int    `yaml:"max_pages"`
	DepthLimit int    `yaml:"depth_limit"`
	UserAgent  string `yaml:"user_agent"`

	Delay    time.Duration `yaml:"-"`
	DelayRaw string        `yaml:"delay"`
}

// ChatConfig holds chat channel configuration
type ChatConfig struct {
	HistoryLimit int `yaml:"history_limit"`

	ResponseTimeout    time.Duration `yaml:"-"`
	ResponseTimeoutRaw string        `yaml:"response_timeout"`
}

// SeedConfig holds base knowledge seeding configuration
type SeedConfig struct {
	// Path to a TOML file of base entities and relations loaded on first run
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied after unmarshaling when fields are unset.
const (
	DefaultMaxPages        = 50
	DefaultDepthLimit      = 2
	DefaultDelay           = time.Second
	DefaultResponseTimeout = 30 * time.Second
	DefaultHistoryLimit    = 50
	DefaultUserAgent       = "portalbot/1.0 (+https://github.com/skyarc/portalbot)"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Index.Embedder {
	case "", "local":
	case "openai":
		if c.Index.EmbedderURL == "" {
			return fmt.Errorf("index.embedder_url is required when index.embedder is %q", c.Index.Embedder)
		}
	default:
		return fmt.Errorf("index.embedder must be \"local\" or \"openai\", got %q", c.Index.Embedder)
	}

	if c.Ingest.MaxPages < 0 {
		return fmt.Errorf("ingest.max_pages must not be negative")
	}
	if c.Ingest.DepthLimit < 0 {
		return fmt.Errorf("ingest.depth_limit must not be negative")
	}

	return nil
}

// applyDefaults fills in zero-valued optional fields.
func (c *Config) applyDefaults() {
	if c.Index.Embedder == "" {
		c.Index.Embedder = "local"
	}
	if c.Ingest.MaxPages == 0 {
		c.Ingest.MaxPages = DefaultMaxPages
	}
	if c.Ingest.DepthLimit == 0 {
		c.Ingest.DepthLimit = DefaultDepthLimit
	}
	if c.Ingest.Delay == 0 {
		c.Ingest.Delay = DefaultDelay
	}
	if c.Ingest.UserAgent == "" {
		c.Ingest.UserAgent = DefaultUserAgent
	}
	if c.Chat.ResponseTimeout == 0 {
		c.Chat.ResponseTimeout = DefaultResponseTimeout
	}
	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = DefaultHistoryLimit
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Ingest.DelayRaw != "" {
		cfg.Ingest.Delay, err = time.ParseDuration(cfg.Ingest.DelayRaw)
		if err != nil {
			return fmt.Errorf("parsing ingest.delay %q: %w", cfg.Ingest.DelayRaw, err)
		}
	}

	if cfg.Chat.ResponseTimeoutRaw != "" {
		cfg.Chat.ResponseTimeout, err = time.ParseDuration(cfg.Chat.ResponseTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing chat.response_timeout %q: %w", cfg.Chat.ResponseTimeoutRaw, err)
		}
	}

	return nil
}
