// Package config loads the webcheck YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telepair/webcheck/internal/collector/page"
	"github.com/telepair/webcheck/internal/pipeline"
	"github.com/telepair/webcheck/internal/status"
	"github.com/telepair/webcheck/pkg/health"
	"github.com/telepair/webcheck/pkg/logger"
	"github.com/telepair/webcheck/pkg/utils"
)

// DefaultPath is where the CLI looks for its configuration.
const DefaultPath = "~/.webcheck.yaml"

const defaultShutdownTimeoutSec = 10

// Config is the whole configuration file.
type Config struct {
	Sites              []page.Config  `yaml:"sites"                json:"sites"`
	Bus                BusConfig      `yaml:"bus"                  json:"bus"`
	Postgres           PostgresConfig `yaml:"postgres"             json:"postgres"`
	Console            bool           `yaml:"console"              json:"console"`
	Pipeline           PipelineConfig `yaml:"pipeline"             json:"pipeline"`
	Status             status.Config  `yaml:"status"               json:"status"`
	Server             ServerConfig   `yaml:"server"               json:"server"`
	Health             health.Config  `yaml:"health"               json:"health"`
	Logger             logger.Config  `yaml:"logger"               json:"logger"`
	ShutdownTimeoutSec int            `yaml:"shutdown_timeout_sec" json:"shutdown_timeout_sec"`
}

// DefaultConfig returns a configuration with no sites, the console writer on
// and a local NATS server.
func DefaultConfig() *Config {
	cfg := &Config{
		Bus:                DefaultBusConfig(),
		Postgres:           DefaultPostgresConfig(),
		Console:            true,
		Pipeline:           DefaultPipelineConfig(),
		Status:             status.DefaultConfig(),
		Server:             DefaultServerConfig(),
		Health:             health.DefaultConfig(),
		Logger:             logger.DefaultConfig(),
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
	cfg.SetDefaults()
	return cfg
}

// ExampleConfig is what `config init` writes: the defaults plus one site.
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Sites = []page.Config{{
		URL:     "https://example.com",
		Regex:   "Example Domain",
		Timeout: page.DefaultTimeout,
	}}
	return cfg
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	c.Bus.SetDefaults()
	c.Postgres.SetDefaults()
	c.Pipeline.SetDefaults()
	c.Status.SetDefaults()
	c.Server.SetDefaults()
	c.Health.SetDefaults()
	c.Logger.SetDefaults()
	if c.ShutdownTimeoutSec <= 0 {
		c.ShutdownTimeoutSec = defaultShutdownTimeoutSec
	}
}

// Validate validates every section. The error wraps pipeline.ErrConfig.
func (c *Config) Validate() error {
	var errs []error
	for i := range c.Sites {
		if err := c.Sites[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sites[%d]: %w", i, err))
		}
	}
	sections := []struct {
		name string
		fn   func() error
	}{
		{"bus", c.Bus.Validate},
		{"postgres", c.Postgres.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"status", c.Status.Validate},
		{"server", c.Server.Validate},
		{"health", c.Health.Validate},
		{"logger", c.Logger.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s config: %w", s.name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
	}
	return nil
}

// ShutdownTimeout returns the shutdown budget as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// LoadConfig loads configuration from a file, or returns default config if
// the file doesn't exist.
func LoadConfig(configPath string) (*Config, error) {
	configPath, err := utils.ExpandPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: expand config path: %w", pipeline.ErrConfig, err)
	}
	if configPath == "" {
		return DefaultConfig(), nil
	}

	// #nosec G304 -- configPath is controlled by user via command line flag
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read config file %s: %w", pipeline.ErrConfig, configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, so omitted keys keep their default.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %w", pipeline.ErrConfig, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes cfg to path, refusing to overwrite unless force is set.
func (c *Config) Save(path string, force bool) (string, error) {
	path, err := utils.ExpandPath(path)
	if err != nil {
		return "", err
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		}
	}
	data, err := c.Marshal()
	if err != nil {
		return path, fmt.Errorf("marshal config: %w", err)
	}
	if _, err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return path, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return path, fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
