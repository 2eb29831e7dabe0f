// Package client wraps a NATS connection and its JetStream context.
package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/telepair/webcheck/pkg/logger"
)

const (
	DefaultURL            = "nats://localhost:4222"
	DefaultName           = "webcheck"
	DefaultConnectTimeout = 5 * time.Second
	DefaultReconnectWait  = 2 * time.Second
	// UnlimitedReconnects keeps reconnecting forever.
	UnlimitedReconnects = -1
	drainTimeout        = 5 * time.Second
)

// Config holds connection settings.
type Config struct {
	Name           string        `yaml:"name"            json:"name"`
	URLs           []string      `yaml:"urls"            json:"urls"`
	Token          string        `yaml:"token"           json:"-"`
	NKey           string        `yaml:"nkey"            json:"-"`
	JWT            string        `yaml:"jwt"             json:"-"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	MaxReconnects  int           `yaml:"max_reconnects"  json:"max_reconnects"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"  json:"reconnect_wait"`
	// TLSSkipVerify disables certificate checks. Development only.
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`

	// TLS, when set, is used as is for the connection.
	TLS *tls.Config `yaml:"-" json:"-"`
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() Config {
	return Config{
		Name:           DefaultName,
		URLs:           []string{DefaultURL},
		ConnectTimeout: DefaultConnectTimeout,
		MaxReconnects:  UnlimitedReconnects,
		ReconnectWait:  DefaultReconnectWait,
	}
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if len(c.URLs) == 0 {
		c.URLs = []string{DefaultURL}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = DefaultReconnectWait
	}
}

// Validate checks URLs and auth combinations.
func (c *Config) Validate() error {
	if len(c.URLs) == 0 {
		return errors.New("at least one url is required")
	}
	for i, u := range c.URLs {
		if err := ValidateNATSURL(u); err != nil {
			return fmt.Errorf("url %d: %w", i, err)
		}
	}
	if c.JWT != "" && c.NKey == "" {
		return errors.New("jwt auth requires an nkey seed")
	}
	if c.Token != "" && c.NKey != "" {
		return errors.New("token and nkey auth are mutually exclusive")
	}
	return nil
}

// Client is one NATS connection with JetStream enabled.
type Client struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	closed  atomic.Bool
	log     *slog.Logger
	metrics *Metrics
}

// NewClient connects using cfg. m may be nil.
func NewClient(cfg Config, log *slog.Logger, m *Metrics) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid nats config: %w", err)
	}
	c := &Client{log: logger.Component(log, "nats").With("name", cfg.Name), metrics: m}

	opts, err := c.options(cfg)
	if err != nil {
		return nil, err
	}
	nc, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", strings.Join(cfg.URLs, ","), err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	c.conn, c.js = nc, js
	c.metrics.connected()
	c.log.Debug("connected", "url", nc.ConnectedUrlRedacted())
	return c, nil
}

// Close drains pending messages and closes the connection. Further calls are no-ops.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- c.conn.Drain() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(drainTimeout):
		err = errors.New("drain timed out")
	}
	c.conn.Close()
	if err != nil {
		c.log.Warn("drain failed", "error", err)
	}
	return nil
}

func (c *Client) JetStream() jetstream.JetStream { return c.js }

// IsConnected reports whether the connection is usable.
func (c *Client) IsConnected() bool {
	return !c.closed.Load() && c.conn != nil && c.conn.IsConnected()
}

// HealthCheck fails unless the connection is up.
func (c *Client) HealthCheck() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}
