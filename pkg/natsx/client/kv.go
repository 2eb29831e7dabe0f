package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telepair/webcheck/pkg/logger"
)

// BucketConfig describes a key-value bucket.
type BucketConfig struct {
	Name     string        `yaml:"name"     json:"name"`
	History  uint8         `yaml:"history"  json:"history"`
	TTL      time.Duration `yaml:"ttl"      json:"ttl"`
	Storage  string        `yaml:"storage"  json:"storage"`
	Replicas int           `yaml:"replicas" json:"replicas"`
}

// Validate checks the bucket name and storage.
func (c *BucketConfig) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if c.Storage != "" {
		if _, err := storageType(c.Storage); err != nil {
			return err
		}
	}
	if c.TTL < 0 {
		return errors.New("ttl cannot be negative")
	}
	return nil
}

// Bucket is a key-value bucket with key validation and logging.
type Bucket struct {
	kv  jetstream.KeyValue
	log *slog.Logger
}

// Bucket opens the bucket, creating it when missing.
func (c *Client) Bucket(ctx context.Context, cfg BucketConfig) (*Bucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bucket %s: %w", cfg.Name, err)
	}
	storage := jetstream.FileStorage
	if cfg.Storage != "" {
		storage, _ = storageType(cfg.Storage)
	}
	replicas := max(cfg.Replicas, 1)

	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   cfg.Name,
		History:  max(cfg.History, 1),
		TTL:      cfg.TTL,
		Storage:  storage,
		Replicas: replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.Name, err)
	}
	return &Bucket{kv: kv, log: logger.Component(c.log, "kv").With("bucket", cfg.Name)}, nil
}

// Put stores value under key.
func (b *Bucket) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if _, err := b.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	b.log.Debug("put", "key", key, "bytes", len(value))
	return nil
}

// Get returns the latest value of key. A missing, deleted or expired key
// yields ErrKeyNotFound.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	entry, err := b.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, fmt.Errorf("get %s: %w", key, ErrKeyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Delete removes key.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := b.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	b.log.Debug("deleted", "key", key)
	return nil
}

// Keys lists live keys. An empty bucket yields no keys and no error.
func (b *Bucket) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	return keys, err
}
