// Package embed runs a JetStream-enabled NATS server inside the process.
package embed

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/telepair/webcheck/pkg/logger"
)

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 4222
	DefaultStoreDir = "./data/nats"
	// RandomPort lets the operating system pick a free port.
	RandomPort = server.RANDOM_PORT

	defaultMaxMemory = 64 << 20
	defaultMaxStore  = 1 << 30
	readyTimeout     = 10 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// Config describes the embedded server.
type Config struct {
	Host      string `yaml:"host"       json:"host"`
	Port      int    `yaml:"port"       json:"port"`
	StoreDir  string `yaml:"store_dir"  json:"store_dir"`
	MaxMemory int64  `yaml:"max_memory" json:"max_memory"`
	MaxStore  int64  `yaml:"max_store"  json:"max_store"`
	Debug     bool   `yaml:"debug"      json:"debug"`
}

// DefaultConfig listens on localhost:4222 with file storage under ./data/nats.
func DefaultConfig() Config {
	return Config{
		Host:      DefaultHost,
		Port:      DefaultPort,
		StoreDir:  DefaultStoreDir,
		MaxMemory: defaultMaxMemory,
		MaxStore:  defaultMaxStore,
	}
}

// SetDefaults fills zero values. Port 0 becomes DefaultPort; use RandomPort
// for an ephemeral one.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.StoreDir == "" {
		c.StoreDir = DefaultStoreDir
	}
	if c.MaxMemory <= 0 {
		c.MaxMemory = defaultMaxMemory
	}
	if c.MaxStore <= 0 {
		c.MaxStore = defaultMaxStore
	}
}

// Validate checks the port range.
func (c *Config) Validate() error {
	if c.Port != RandomPort && (c.Port < 1 || c.Port > 65535) {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// Server is an embedded nats-server.
type Server struct {
	ns   *server.Server
	log  *slog.Logger
	once sync.Once
}

// New prepares a server; call Start to accept connections.
func New(cfg Config, log *slog.Logger) (*Server, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("embedded nats: %w", err)
	}
	ns, err := server.NewServer(&server.Options{
		ServerName:         "webcheck-embedded",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		StoreDir:           filepath.Clean(cfg.StoreDir),
		Debug:              cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats: %w", err)
	}
	l := logger.Component(log, "nats-server")
	ns.SetLoggerV2(&slogAdapter{log: l}, cfg.Debug, false, false)
	return &Server{ns: ns, log: l}, nil
}

// Start runs the server and waits until it accepts clients.
func (s *Server) Start() error {
	s.ns.Start()
	if !s.ns.ReadyForConnections(readyTimeout) {
		s.ns.Shutdown()
		return errors.New("embedded nats not ready in time")
	}
	s.log.Info("embedded nats started", "url", s.ns.ClientURL())
	return nil
}

// Shutdown stops the server once.
func (s *Server) Shutdown() error {
	var err error
	s.once.Do(func() {
		s.ns.Shutdown()
		done := make(chan struct{})
		go func() {
			s.ns.WaitForShutdown()
			close(done)
		}()
		select {
		case <-done:
			s.log.Info("embedded nats stopped")
		case <-time.After(shutdownTimeout):
			err = errors.New("embedded nats shutdown timed out")
		}
	})
	return err
}

// ClientURL is the address clients should dial.
func (s *Server) ClientURL() string { return s.ns.ClientURL() }

// HealthCheck fails when the server stopped or JetStream is off.
func (s *Server) HealthCheck() error {
	if !s.ns.Running() {
		return errors.New("embedded nats not running")
	}
	if !s.ns.JetStreamEnabled() {
		return errors.New("embedded nats has no jetstream")
	}
	return nil
}

// slogAdapter routes nats-server logs to slog.
type slogAdapter struct{ log *slog.Logger }

func (a *slogAdapter) Noticef(format string, v ...any) { a.log.Info(fmt.Sprintf(format, v...)) }
func (a *slogAdapter) Warnf(format string, v ...any)   { a.log.Warn(fmt.Sprintf(format, v...)) }
func (a *slogAdapter) Errorf(format string, v ...any)  { a.log.Error(fmt.Sprintf(format, v...)) }
func (a *slogAdapter) Fatalf(format string, v ...any)  { a.log.Error(fmt.Sprintf(format, v...)) }
func (a *slogAdapter) Debugf(format string, v ...any)  { a.log.Debug(fmt.Sprintf(format, v...)) }
func (a *slogAdapter) Tracef(format string, v ...any)  { a.log.Debug(fmt.Sprintf(format, v...)) }
