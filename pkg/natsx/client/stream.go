package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamConfig is the YAML form of a JetStream stream definition.
type StreamConfig struct {
	Name       string        `yaml:"name"       json:"name"`
	Subjects   []string      `yaml:"subjects"   json:"subjects"`
	Retention  string        `yaml:"retention"  json:"retention"` // limits, interest or workqueue
	Storage    string        `yaml:"storage"    json:"storage"`   // file or memory
	MaxAge     time.Duration `yaml:"max_age"    json:"max_age"`
	MaxBytes   int64         `yaml:"max_bytes"  json:"max_bytes"`
	Replicas   int           `yaml:"replicas"   json:"replicas"`
	Duplicates time.Duration `yaml:"duplicates" json:"duplicates"`
}

// SetDefaults fills retention, storage and replicas.
func (c *StreamConfig) SetDefaults() {
	if c.Retention == "" {
		c.Retention = "limits"
	}
	if c.Storage == "" {
		c.Storage = "file"
	}
	if c.Replicas == 0 {
		c.Replicas = 1
	}
}

// Validate checks names and enumerations.
func (c *StreamConfig) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if len(c.Subjects) == 0 {
		return errors.New("stream needs at least one subject")
	}
	for _, s := range c.Subjects {
		if err := ValidateSubject(s, true); err != nil {
			return err
		}
	}
	if _, err := retentionPolicy(c.Retention); err != nil {
		return err
	}
	if _, err := storageType(c.Storage); err != nil {
		return err
	}
	if c.Replicas < 1 || c.MaxAge < 0 || c.MaxBytes < 0 || c.Duplicates < 0 {
		return errors.New("replicas must be at least 1 and limits cannot be negative")
	}
	return nil
}

// JetStream converts to the client library form.
func (c StreamConfig) JetStream() (jetstream.StreamConfig, error) {
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return jetstream.StreamConfig{}, err
	}
	retention, _ := retentionPolicy(c.Retention)
	storage, _ := storageType(c.Storage)
	maxBytes := c.MaxBytes
	if maxBytes == 0 {
		maxBytes = -1
	}
	return jetstream.StreamConfig{
		Name:       c.Name,
		Subjects:   c.Subjects,
		Retention:  retention,
		Storage:    storage,
		MaxAge:     c.MaxAge,
		MaxBytes:   maxBytes,
		Replicas:   c.Replicas,
		Duplicates: c.Duplicates,
	}, nil
}

func retentionPolicy(s string) (jetstream.RetentionPolicy, error) {
	switch s {
	case "limits":
		return jetstream.LimitsPolicy, nil
	case "interest":
		return jetstream.InterestPolicy, nil
	case "workqueue":
		return jetstream.WorkQueuePolicy, nil
	}
	return 0, fmt.Errorf("unknown retention %q", s)
}

func storageType(s string) (jetstream.StorageType, error) {
	switch s {
	case "file":
		return jetstream.FileStorage, nil
	case "memory":
		return jetstream.MemoryStorage, nil
	}
	return 0, fmt.Errorf("unknown storage %q", s)
}

// EnsureStream returns the named stream, creating it when missing.
// An existing stream is used as is.
func (c *Client) EnsureStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	jsCfg, err := cfg.JetStream()
	if err != nil {
		return nil, fmt.Errorf("stream %s: %w", cfg.Name, err)
	}
	stream, err := c.js.Stream(ctx, jsCfg.Name)
	if err == nil {
		return stream, nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return nil, fmt.Errorf("lookup stream %s: %w", jsCfg.Name, err)
	}
	stream, err = c.js.CreateStream(ctx, jsCfg)
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", jsCfg.Name, err)
	}
	c.log.Info("stream created", "stream", jsCfg.Name, "subjects", jsCfg.Subjects)
	return stream, nil
}
