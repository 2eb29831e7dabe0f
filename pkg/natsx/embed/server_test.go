package embed

import (
	"testing"

	"github.com/nats-io/nats.go"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.Host != DefaultHost || cfg.Port != DefaultPort || cfg.StoreDir != DefaultStoreDir {
		t.Errorf("SetDefaults() = %+v", cfg)
	}
	if cfg.MaxMemory != defaultMaxMemory || cfg.MaxStore != defaultMaxStore {
		t.Errorf("limits = %d/%d", cfg.MaxMemory, cfg.MaxStore)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		port    int
		wantErr bool
	}{
		{RandomPort, false},
		{4222, false},
		{65535, false},
		{-7, true},
		{70000, true},
	}
	for _, tt := range tests {
		cfg := Config{Port: tt.port}
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(port=%d) error = %v, wantErr %v", tt.port, err, tt.wantErr)
		}
	}
}

func TestServerLifecycle(t *testing.T) {
	s, err := New(Config{Port: RandomPort, StoreDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.HealthCheck(); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	nc, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	nc.Close()

	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
	if err := s.HealthCheck(); err == nil {
		t.Error("HealthCheck() after shutdown should fail")
	}
}
