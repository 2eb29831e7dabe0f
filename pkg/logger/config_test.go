package logger

import (
	"log/slog"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "bad console level", mutate: func(c *Config) { c.Console.Level = "loud" }, wantErr: true},
		{name: "bad console format", mutate: func(c *Config) { c.Console.Format = "xml" }, wantErr: true},
		{name: "disabled console ignores junk", mutate: func(c *Config) {
			c.Console.Enabled = false
			c.Console.Format = "xml"
		}},
		{name: "file without name", mutate: func(c *Config) {
			c.File.Enabled = true
			c.File.Filename = ""
		}, wantErr: true},
		{name: "file zero size", mutate: func(c *Config) {
			c.File.Enabled = true
			c.File.MaxSize = 0
		}, wantErr: true},
		{name: "file negative age", mutate: func(c *Config) {
			c.File.Enabled = true
			c.File.MaxAge = -1
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.Console.Level != LevelInfo || cfg.Console.Format != FormatText {
		t.Errorf("console defaults = %+v", cfg.Console)
	}
	if cfg.File.Filename != defaultFilename || cfg.File.MaxSize != defaultMaxSizeMB {
		t.Errorf("file defaults = %+v", cfg.File)
	}
}

func TestOverrideLevel(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.OverrideLevel("DEBUG"); err != nil {
		t.Fatalf("OverrideLevel() error = %v", err)
	}
	if cfg.Console.Level != LevelDebug || cfg.File.Level != LevelDebug {
		t.Errorf("levels = %q/%q, want debug", cfg.Console.Level, cfg.File.Level)
	}
	if err := cfg.OverrideLevel("verbose"); err == nil {
		t.Error("OverrideLevel(verbose) should fail")
	}
	if err := cfg.OverrideLevel(""); err != nil || cfg.Console.Level != LevelDebug {
		t.Error("empty override must leave levels untouched")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[Level]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("ParseLevel(trace) should fail")
	}
}
