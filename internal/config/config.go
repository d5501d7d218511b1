// Package config loads escrowctl settings from defaults, a YAML profile, an
// optional .env file and ESCROW_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL      = "http://localhost:8080"
	DefaultFrontendURL = "http://localhost:3000"
	DefaultEmailJSURL  = "https://api.emailjs.com/api/v1.0/email/send"
	DefaultSchedule    = "@every 30s"
)

// Config is the full client configuration.
type Config struct {
	API      APIConfig     `yaml:"api"`
	Auth     AuthConfig    `yaml:"auth"`
	Logging  LoggingConfig `yaml:"logging"`
	Cache    CacheConfig   `yaml:"cache"`
	Email    EmailConfig   `yaml:"email"`
	Watch    WatchConfig   `yaml:"watch"`
	Output   string        `yaml:"output" env:"ESCROW_OUTPUT"`
	Currency string        `yaml:"currency" env:"ESCROW_CURRENCY"`
}

type APIConfig struct {
	URL               string        `yaml:"url" env:"ESCROW_API_URL"`
	FrontendURL       string        `yaml:"frontend_url" env:"ESCROW_FRONTEND_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"ESCROW_HTTP_TIMEOUT"`
	MaxRetries        int           `yaml:"max_retries" env:"ESCROW_MAX_RETRIES"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"ESCROW_RPS"`
}

type AuthConfig struct {
	Token string `yaml:"token" env:"ESCROW_TOKEN"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"ESCROW_LOG_LEVEL"`
	Format string `yaml:"format" env:"ESCROW_LOG_FORMAT"`
}

// CacheConfig selects the lookup cache backend.
type CacheConfig struct {
	Backend       string        `yaml:"backend" env:"ESCROW_CACHE"`
	TTL           time.Duration `yaml:"ttl" env:"ESCROW_CACHE_TTL"`
	RedisAddr     string        `yaml:"redis_addr" env:"ESCROW_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"ESCROW_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"ESCROW_REDIS_DB"`
}

// EmailConfig holds the EmailJS account used for dispute, cancel and help notices.
type EmailConfig struct {
	Endpoint            string `yaml:"endpoint" env:"ESCROW_EMAIL_ENDPOINT"`
	ServiceID           string `yaml:"service_id" env:"ESCROW_EMAIL_SERVICE"`
	PublicKey           string `yaml:"public_key" env:"ESCROW_EMAIL_PUBLIC_KEY"`
	TemplateTransaction string `yaml:"template_transaction" env:"ESCROW_EMAIL_TEMPLATE_TRANSACTION"`
	TemplateHelp        string `yaml:"template_help" env:"ESCROW_EMAIL_TEMPLATE_HELP"`
	ToEmail             string `yaml:"to_email" env:"ESCROW_EMAIL_TO"`
	URLEmail            string `yaml:"url_email" env:"ESCROW_EMAIL_URL"`
}

// Enabled reports whether enough is set to call EmailJS.
func (e EmailConfig) Enabled() bool {
	return e.ServiceID != "" && e.PublicKey != "" && e.TemplateTransaction != ""
}

type WatchConfig struct {
	Schedule    string `yaml:"schedule" env:"ESCROW_WATCH_SCHEDULE"`
	MetricsAddr string `yaml:"metrics_addr" env:"ESCROW_METRICS_ADDR"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:               DefaultAPIURL,
			FrontendURL:       DefaultFrontendURL,
			Timeout:           15 * time.Second,
			MaxRetries:        2,
			RequestsPerSecond: 10,
		},
		Logging:  LoggingConfig{Level: "warn", Format: "text"},
		Cache:    CacheConfig{Backend: "memory", TTL: 10 * time.Minute, RedisAddr: "localhost:6379"},
		Email:    EmailConfig{Endpoint: DefaultEmailJSURL},
		Watch:    WatchConfig{Schedule: DefaultSchedule},
		Output:   "table",
		Currency: "thb",
	}
}

// DefaultProfilePath is ~/.config/escrowctl/config.yaml.
func DefaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".escrowctl", "config.yaml")
	}
	return filepath.Join(dir, "escrowctl", "config.yaml")
}

// Load builds a Config. An empty path means DefaultProfilePath. A missing
// profile or .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultProfilePath()
	}

	if err := cfg.loadProfile(path); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadProfile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.API.URL = strings.TrimRight(strings.TrimSpace(c.API.URL), "/")
	c.API.FrontendURL = strings.TrimRight(strings.TrimSpace(c.API.FrontendURL), "/")
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Currency = strings.ToLower(c.Currency)
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api url %q", c.API.URL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", c.Watch.Schedule, err)
	}
	return nil
}

// profile is the subset written back to disk.
type profile struct {
	API  struct {
		URL string `yaml:"url"`
	} `yaml:"api"`
	Auth AuthConfig `yaml:"auth"`
}

// SaveProfile persists the API URL and token with owner-only permissions,
// preserving any other keys already in the file.
func (c *Config) SaveProfile(path string) error {
	if path == "" {
		path = DefaultProfilePath()
	}

	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse profile %s: %w", path, err)
		}
	}

	var p profile
	p.API.URL = c.API.URL
	p.Auth = c.Auth
	raw, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	var overlay map[string]any
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return err
	}
	for key, value := range overlay {
		existing, ok := doc[key].(map[string]any)
		if !ok {
			doc[key] = value
			continue
		}
		for k, v := range value.(map[string]any) {
			existing[k] = v
		}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	return os.WriteFile(path, out, 0o600)
}
