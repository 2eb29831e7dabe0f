package health

import (
	"fmt"

	"github.com/telepair/webcheck/pkg/utils"
)

// Default values for health configuration.
const (
	DefaultAddr      = ":9091"
	DefaultNamespace = "webcheck"

	LivezPath   = "/livez"
	ReadyzPath  = "/readyz"
	MetricsPath = "/metrics"
)

// Config holds configuration for the health server.
type Config struct {
	Enabled          bool   `json:"enabled"           yaml:"enabled"`
	Addr             string `json:"addr"              yaml:"addr"`
	MetricsNamespace string `json:"metrics_namespace" yaml:"metrics_namespace"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Addr:             DefaultAddr,
		MetricsNamespace: DefaultNamespace,
	}
}

// SetDefaults fills empty fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = DefaultNamespace
	}
}

// Validate checks the configuration. A disabled server is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := utils.ValidateAddr(c.Addr); err != nil {
		return fmt.Errorf("invalid addr: %w", err)
	}
	return nil
}
