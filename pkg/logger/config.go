package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Format is the output encoding of a handler.
type Format string

// Level is a textual log level as it appears in configuration.
type Level string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
	defaultMaxAgeDays = 14
	defaultFilename   = "webcheck.log"
)

// ConsoleConfig configures the stderr handler.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   Level  `yaml:"level"   json:"level"`
	Format  Format `yaml:"format"  json:"format"`
}

// FileConfig configures the rotating file handler.
type FileConfig struct {
	Enabled    bool   `yaml:"enabled"     json:"enabled"`
	Level      Level  `yaml:"level"       json:"level"`
	Format     Format `yaml:"format"      json:"format"`
	Filename   string `yaml:"filename"    json:"filename"`
	MaxSize    int    `yaml:"max_size"    json:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age"     json:"max_age"` // days
	Compress   bool   `yaml:"compress"    json:"compress"`
}

// Config is the logger section of the configuration file.
type Config struct {
	Console ConsoleConfig `yaml:"console" json:"console"`
	File    FileConfig    `yaml:"file"    json:"file"`
}

// DefaultConfig returns a text console logger at info level.
func DefaultConfig() Config {
	return Config{
		Console: ConsoleConfig{Enabled: true, Level: LevelInfo, Format: FormatText},
		File: FileConfig{
			Level:      LevelInfo,
			Format:     FormatJSON,
			Filename:   defaultFilename,
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   true,
		},
	}
}

// SetDefaults fills zero values left by a partial YAML document.
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if c.Console.Level == "" {
		c.Console.Level = def.Console.Level
	}
	if c.Console.Format == "" {
		c.Console.Format = def.Console.Format
	}
	if c.File.Level == "" {
		c.File.Level = def.File.Level
	}
	if c.File.Format == "" {
		c.File.Format = def.File.Format
	}
	if c.File.Filename == "" {
		c.File.Filename = def.File.Filename
	}
	if c.File.MaxSize == 0 {
		c.File.MaxSize = def.File.MaxSize
	}
}

// OverrideLevel forces every handler to the given level. An empty level is a no-op.
func (c *Config) OverrideLevel(level string) error {
	if level == "" {
		return nil
	}
	l := Level(strings.ToLower(level))
	if _, err := ParseLevel(l); err != nil {
		return err
	}
	c.Console.Level = l
	c.File.Level = l
	return nil
}

// Validate checks enabled handlers only.
func (c *Config) Validate() error {
	if c.Console.Enabled {
		if err := validateHandler(c.Console.Level, c.Console.Format); err != nil {
			return fmt.Errorf("console: %w", err)
		}
	}
	if !c.File.Enabled {
		return nil
	}
	if err := validateHandler(c.File.Level, c.File.Format); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	switch {
	case c.File.Filename == "":
		return errors.New("file: filename is required")
	case c.File.MaxSize <= 0:
		return errors.New("file: max_size must be positive")
	case c.File.MaxBackups < 0, c.File.MaxAge < 0:
		return errors.New("file: max_backups and max_age cannot be negative")
	}
	return nil
}

func validateHandler(level Level, format Format) error {
	if _, err := ParseLevel(level); err != nil {
		return err
	}
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

// ParseLevel maps a configured level onto slog.
func ParseLevel(l Level) (slog.Level, error) {
	switch strings.ToLower(string(l)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", l)
}
