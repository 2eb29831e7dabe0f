package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/telepair/webcheck/pkg/natsx/embed"
)

func startServer(t *testing.T) string {
	t.Helper()
	s, err := embed.New(embed.Config{Port: embed.RandomPort, StoreDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("embed.New() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s.ClientURL()
}

func connect(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URLs = []string{startServer(t)}
	c, err := NewClient(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func userSeed(t *testing.T) string {
	t.Helper()
	kp, err := nkeys.CreateUser()
	if err != nil {
		t.Fatal(err)
	}
	seed, err := kp.Seed()
	if err != nil {
		t.Fatal(err)
	}
	return string(seed)
}

func TestConfigValidate(t *testing.T) {
	seed := userSeed(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"tls scheme", func(c *Config) { c.URLs = []string{"tls://nats.example.com:4222"} }, false},
		{"http scheme", func(c *Config) { c.URLs = []string{"http://localhost:4222"} }, true},
		{"no host", func(c *Config) { c.URLs = []string{"nats://:4222"} }, true},
		{"jwt without seed", func(c *Config) { c.JWT = "eyJ" }, true},
		{"token and nkey", func(c *Config) { c.Token, c.NKey = "t", seed }, true},
		{"nkey", func(c *Config) { c.NKey = seed }, false},
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

func TestAuthOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantOpts int
		wantErr  bool
	}{
		{"none", Config{}, 0, false},
		{"token", Config{Token: "secret"}, 1, false},
		{"nkey", Config{NKey: userSeed(t)}, 1, false},
		{"bad seed", Config{NKey: "not-a-seed"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := authOptions(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("authOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(opts) != tt.wantOpts {
				t.Errorf("authOptions() returned %d options, want %d", len(opts), tt.wantOpts)
			}
		})
	}
}

func TestClientLifecycle(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.URLs = []string{startServer(t)}
	c, err := NewClient(cfg, nil, m)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if !c.IsConnected() {
		t.Error("IsConnected() = false after connect")
	}
	if err := c.HealthCheck(); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if c.JetStream() == nil {
		t.Error("JetStream() = nil")
	}
	if got := testutil.ToFloat64(m.connects); got != 1 {
		t.Errorf("connects = %v, want 1", got)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after close")
	}
	if err := c.HealthCheck(); !errors.Is(err, ErrClientClosed) {
		t.Errorf("HealthCheck() error = %v, want %v", err, ErrClientClosed)
	}
}

func TestNewClientUnreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URLs = []string{"nats://127.0.0.1:1"}
	cfg.ConnectTimeout = 200 * time.Millisecond
	if _, err := NewClient(cfg, nil, nil); err == nil {
		t.Error("NewClient() connected to a closed port")
	}
}

func TestEnsureStream(t *testing.T) {
	c := connect(t)
	ctx := context.Background()
	cfg := StreamConfig{Name: "WEBCHECK", Subjects: []string{"webcheck"}, Storage: "memory"}

	s, err := c.EnsureStream(ctx, cfg)
	if err != nil {
		t.Fatalf("EnsureStream() error = %v", err)
	}
	info, err := s.Info(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Config.Storage != jetstream.MemoryStorage || info.Config.Retention != jetstream.LimitsPolicy {
		t.Errorf("stream config = %+v", info.Config)
	}

	// second call returns the existing stream
	if _, err := c.EnsureStream(ctx, cfg); err != nil {
		t.Errorf("EnsureStream() on existing stream error = %v", err)
	}

	_, err = c.EnsureStream(ctx, StreamConfig{Name: "bad.name", Subjects: []string{"x"}})
	if !errors.Is(err, ErrInvalidName) {
		t.Errorf("EnsureStream() error = %v, want %v", err, ErrInvalidName)
	}
}

func TestBucket(t *testing.T) {
	c := connect(t)
	ctx := context.Background()
	b, err := c.Bucket(ctx, BucketConfig{Name: "webcheck-status", Storage: "memory", TTL: time.Minute})
	if err != nil {
		t.Fatalf("Bucket() error = %v", err)
	}

	keys, err := b.Keys(ctx)
	if err != nil || len(keys) != 0 {
		t.Fatalf("Keys() on empty bucket = %v, %v", keys, err)
	}

	if err := b.Put(ctx, "producer.abc", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := b.Get(ctx, "producer.abc")
	if err != nil || string(got) != `{"ok":true}` {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	keys, err = b.Keys(ctx)
	if err != nil || len(keys) != 1 || keys[0] != "producer.abc" {
		t.Fatalf("Keys() = %v, %v", keys, err)
	}

	if err := b.Delete(ctx, "producer.abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := b.Get(ctx, "producer.abc"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() after delete error = %v, want %v", err, ErrKeyNotFound)
	}
	if _, err := b.Get(ctx, "consumer.missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() of missing key error = %v, want %v", err, ErrKeyNotFound)
	}
	if err := b.Put(ctx, "bad key", nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put() error = %v, want %v", err, ErrInvalidKey)
	}
}
