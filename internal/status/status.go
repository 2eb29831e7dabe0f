// Package status publishes a periodic heartbeat of a running instance into a
// key-value bucket.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/telepair/webcheck/pkg/logger"
	"github.com/telepair/webcheck/pkg/natsx/client"
	"github.com/telepair/webcheck/pkg/version"
)

const (
	DefaultBucket   = "webcheck-status"
	DefaultInterval = 30 * time.Second

	StateRunning = "running"
	StateStopped = "stopped"

	finalReportTimeout = 2 * time.Second
)

// Config controls the heartbeat.
type Config struct {
	Enabled  bool          `yaml:"enabled"  json:"enabled"`
	Bucket   string        `yaml:"bucket"   json:"bucket"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// DefaultConfig returns an enabled heartbeat every 30 seconds.
func DefaultConfig() Config {
	return Config{Enabled: true, Bucket: DefaultBucket, Interval: DefaultInterval}
}

// SetDefaults fills empty fields.
func (c *Config) SetDefaults() {
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval < time.Second {
		return fmt.Errorf("status interval %s is below 1s", c.Interval)
	}
	if c.Bucket == "" {
		return errors.New("status bucket is required")
	}
	return nil
}

// BucketConfig describes the status bucket. Instances that stop reporting
// expire after three missed beats.
func (c Config) BucketConfig(storage string) client.BucketConfig {
	c.SetDefaults()
	return client.BucketConfig{Name: c.Bucket, TTL: 3 * c.Interval, Storage: storage}
}

// Host describes the machine an instance runs on.
type Host struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	KernelVersion string `json:"kernel_version"`
	Arch          string `json:"arch"`
	CPUs          int    `json:"cpus"`
	TotalMemory   uint64 `json:"total_memory"`
}

// CollectHost reads host facts. Missing facts are left empty.
func CollectHost(ctx context.Context) (Host, error) {
	h := Host{Arch: runtime.GOARCH, CPUs: runtime.NumCPU(), OS: runtime.GOOS}
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return h, fmt.Errorf("host info: %w", err)
	}
	h.Hostname = info.Hostname
	h.Platform = info.Platform
	h.KernelVersion = info.KernelVersion
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		h.TotalMemory = vm.Total
	}
	return h, nil
}

// Status is the heartbeat document.
type Status struct {
	Instance  string    `json:"instance"`
	Role      string    `json:"role"`
	State     string    `json:"state"`
	Version   string    `json:"version"`
	Host      Host      `json:"host"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key is the bucket key of the instance.
func (s Status) Key() string { return s.Role + "." + s.Instance }

// Store is the subset of a key-value bucket the reporter needs.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
}

// Reporter writes the status of one instance every interval.
type Reporter struct {
	store    Store
	role     string
	instance string
	interval time.Duration
	host     Host
	started  time.Time
	log      *slog.Logger
}

// NewReporter creates a reporter for role with a fresh instance ID.
func NewReporter(ctx context.Context, store Store, role string, cfg Config, log *slog.Logger) *Reporter {
	cfg.SetDefaults()
	r := &Reporter{
		store:    store,
		role:     role,
		instance: uuid.NewString(),
		interval: cfg.Interval,
		started:  time.Now().UTC(),
	}
	r.log = logger.Component(log, "status").With("key", r.Key())
	h, err := CollectHost(ctx)
	if err != nil {
		r.log.Warn("collect host info failed", "error", err)
	}
	r.host = h
	return r
}

// Key is the bucket key of this instance.
func (r *Reporter) Key() string { return Status{Role: r.role, Instance: r.instance}.Key() }

// Instance returns the generated instance ID.
func (r *Reporter) Instance() string { return r.instance }

// Snapshot builds the current status document.
func (r *Reporter) Snapshot(state string) Status {
	return Status{
		Instance:  r.instance,
		Role:      r.role,
		State:     state,
		Version:   version.Get().Version,
		Host:      r.host,
		StartedAt: r.started,
		UpdatedAt: time.Now().UTC(),
	}
}

// Run reports immediately and then every interval until ctx is done, when a
// final stopped status is written. Write failures are logged, never returned.
func (r *Reporter) Run(ctx context.Context) error {
	r.report(ctx, StateRunning)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalReportTimeout)
			r.report(final, StateStopped)
			cancel()
			return nil
		case <-ticker.C:
			r.report(ctx, StateRunning)
		}
	}
}

func (r *Reporter) report(ctx context.Context, state string) {
	data, err := json.Marshal(r.Snapshot(state))
	if err != nil {
		r.log.Error("marshal status failed", "error", err)
		return
	}
	if err := r.store.Put(ctx, r.Key(), data); err != nil {
		r.log.Warn("report status failed", "error", err)
		return
	}
	r.log.Debug("status reported", "state", state)
}

// Reader is the read side of the status bucket.
type Reader interface {
	Keys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// List returns every reported instance ordered by key. Keys that expire
// between listing and reading are skipped.
func List(ctx context.Context, r Reader) ([]Status, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list status keys: %w", err)
	}
	slices.Sort(keys)

	out := make([]Status, 0, len(keys))
	for _, key := range keys {
		data, err := r.Get(ctx, key)
		if errors.Is(err, client.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var s Status
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode status %s: %w", key, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Deleter removes keys from the status bucket.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Prune deletes the entries of stopped instances and returns how many went.
func Prune(ctx context.Context, d Deleter, list []Status) (int, error) {
	n := 0
	for _, s := range list {
		if s.State != StateStopped {
			continue
		}
		if err := d.Delete(ctx, s.Key()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
