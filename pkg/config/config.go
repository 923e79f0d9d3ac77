// Package config loads the tap configuration from a YAML or JSON file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/coda-tap/pkg/client"
	"github.com/Sternrassler/coda-tap/pkg/schema"
)

// Environment variables read by ApplyEnv.
const (
	EnvAuthToken  = "TAP_CODA_AUTH_TOKEN"
	EnvAPIURL     = "TAP_CODA_API_URL"
	EnvRedisAddr  = "TAP_CODA_REDIS_ADDR"
	EnvSQLitePath = "TAP_CODA_SQLITE_PATH"
	EnvParallel   = "TAP_CODA_PARALLEL"
)

// DefaultUserAgent identifies the tap to the API.
const DefaultUserAgent = "tap-coda/0.1.0"

// ConfigurationError reports a missing or invalid setting. It is raised
// before any network activity.
type ConfigurationError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ErrRequired marks a required setting that is absent.
var ErrRequired = errors.New("is required")

// Config is the tap configuration. Field names follow the Singer
// convention of snake_case keys.
type Config struct {
	// AuthToken is the Coda API bearer token (REQUIRED).
	AuthToken string `yaml:"auth_token"`

	APIURL     string `yaml:"api_url"`
	OpenAPIURL string `yaml:"openapi_url"`
	UserAgent  string `yaml:"user_agent"`

	// RedisAddr enables caching of the API description between runs.
	RedisAddr string `yaml:"redis_addr"`

	// SQLitePath additionally stores records in a SQLite database.
	SQLitePath string `yaml:"sqlite_path"`

	Parallel      int      `yaml:"parallel"`
	StrictRecords bool     `yaml:"strict_records"`
	Selected      []string `yaml:"selected"`
}

// Default returns a configuration with every optional setting filled in.
func Default() Config {
	return Config{
		APIURL:     client.DefaultBaseURL,
		OpenAPIURL: schema.DefaultDescriptionURL,
		UserAgent:  DefaultUserAgent,
		Parallel:   1,
	}
}

// Load reads path on top of the defaults and applies the environment.
// An empty path uses the defaults and the environment only. The result is
// not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := cfg.parse(data); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes a YAML or JSON document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.parse(data); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) parse(data []byte) error {
	// JSON is a subset of YAML 1.2, so one decoder covers both formats.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAuthToken); ok && v != "" {
		c.AuthToken = v
	}
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.APIURL = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.RedisAddr = v
	}
	if v, ok := lookup(EnvSQLitePath); ok && v != "" {
		c.SQLitePath = v
	}
	if v, ok := lookup(EnvParallel); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigurationError{Field: "parallel", Err: fmt.Errorf("%s=%q is not a number", EnvParallel, v)}
		}
		c.Parallel = n
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AuthToken) == "" {
		return &ConfigurationError{Field: "auth_token", Err: ErrRequired}
	}
	if c.UserAgent == "" {
		return &ConfigurationError{Field: "user_agent", Err: ErrRequired}
	}
	for field, v := range map[string]string{"api_url": c.APIURL, "openapi_url": c.OpenAPIURL} {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return &ConfigurationError{Field: field, Err: fmt.Errorf("%q is not an http(s) URL", v)}
		}
	}
	if c.Parallel < 1 {
		return &ConfigurationError{Field: "parallel", Err: fmt.Errorf("must be at least 1, got %d", c.Parallel)}
	}
	return nil
}

// ClientConfig derives the API client configuration.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.AuthToken, c.UserAgent)
	cfg.BaseURL = c.APIURL
	return cfg
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.AuthToken != "" {
		c.AuthToken = "***"
	}
	return c
}
