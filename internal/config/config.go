// Package config loads the CLI configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the quiver CLI needs to reach an application.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Hosts   HostsConfig   `yaml:"hosts"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// AppConfig identifies the application and its credentials.
type AppConfig struct {
	ID     string `yaml:"id"`
	APIKey string `yaml:"api_key"`
}

// HostsConfig overrides the hosts derived from the application ID. Mostly
// used to point the CLI at a staging or local deployment.
type HostsConfig struct {
	Search []string `yaml:"search"`
	Write  []string `yaml:"write"`
}

// CacheConfig controls the search response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
	// Redis, when non-empty, backs the cache with a shared Redis instance.
	Redis         []string `yaml:"redis"`
	RedisPassword string   `yaml:"redis_password"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// TTL returns the configured cache TTL, or zero when unset.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// Load reads and validates a config file. Values of the form ${VAR} are
// substituted from the environment, so API keys can stay out of the file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.App.ID == "" {
		return fmt.Errorf("app.id is required")
	}
	if c.App.APIKey == "" {
		return fmt.Errorf("app.api_key is required")
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("cache.ttl_sec must not be negative, got %d", c.Cache.TTLSec)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		if value, ok := os.LookupEnv(string(name)); ok {
			return []byte(value)
		}
		return match
	})
}
