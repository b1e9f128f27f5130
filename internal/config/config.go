package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
)

const (
	SessionStorageRedis = "redis"
	SessionStorageFile  = "file"
)

type Config struct {
	Environment string `toml:"-"`

	Host string `toml:"host"`
	Port int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// remote blog api
	APIBaseURL        string `toml:"api_base_url"`
	APITimeoutSeconds int    `toml:"api_timeout_seconds"`
	// session storage: redis | file
	SessionStorage  string `toml:"session_storage"`
	SessionFilePath string `toml:"session_file_path"`
	RedisHost       string `toml:"redis_host"`
	RedisPort       string `toml:"redis_port"`
	// session cookie only sent over https
	CookieSecure bool `toml:"cookie_secure"`
	// misc
	LoginRateLimitAllowedPerMin int    `toml:"login_rate_limit_allowed_per_min"`
	TaxonomyCacheTTLSeconds     int    `toml:"taxonomy_cache_ttl_seconds"`
	PrometheusMetricsHost       string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort       string `toml:"prometheus_metrics_port"`
}

type Toml struct {
	Development *Config `toml:"development"`
	Production  *Config `toml:"production"`
}

// Secrets are never kept in the config file, only read from the environment
type Secrets struct {
	RedisPassword    string `env:"BLOGPANEL_REDIS_PASS"`
	SentryDSN        string `env:"SENTRY_DSN"`
	HoneycombEnabled bool   `env:"HONEYCOMB_ENABLED, default=false"`
	HoneycombAPIKey  string `env:"HONEYCOMB_API_KEY"`
	// signs the session cookie, at least 32 bytes; panels sharing a redis need the same key
	CookieHashKey string `env:"BLOGPANEL_COOKIE_HASH_KEY"`
	// overrides api_base_url from the config file
	APIBaseURL string `env:"BLOGPANEL_API_BASE_URL"`
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
		env = "development"
	case "prod", "production":
		cfg = t.Production
		env = "production"
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env %s missing", env)
	}
	cfg.Environment = env
	return cfg, nil
}

func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadSecrets(ctx context.Context) (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process(ctx, &s); err != nil {
		return nil, fmt.Errorf("process env secrets: %w", err)
	}
	return &s, nil
}

// ApplySecrets merges the env overrides into the config
func (c *Config) ApplySecrets(s *Secrets) {
	if s == nil {
		return
	}
	if s.APIBaseURL != "" {
		c.APIBaseURL = s.APIBaseURL
	}
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

func (c *Config) TaxonomyCacheTTL() time.Duration {
	return time.Duration(c.TaxonomyCacheTTLSeconds) * time.Second
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.APITimeoutSeconds <= 0 {
		c.APITimeoutSeconds = 15
	}
	if c.SessionStorage == "" {
		c.SessionStorage = SessionStorageRedis
	}
	if c.LoginRateLimitAllowedPerMin <= 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.TaxonomyCacheTTLSeconds < 0 {
		c.TaxonomyCacheTTLSeconds = 0
	}
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api_base_url not set")
	}
	switch c.SessionStorage {
	case SessionStorageRedis:
		if c.RedisHost == "" || c.RedisPort == "" {
			return errors.New("redis session storage needs redis_host and redis_port")
		}
	case SessionStorageFile:
		if c.SessionFilePath == "" {
			return errors.New("file session storage needs session_file_path")
		}
	default:
		return fmt.Errorf("unknown session storage: %s", c.SessionStorage)
	}
	return nil
}
