// Package server assembles a webcheck process: logging, the health endpoint,
// an optional embedded NATS server, the status heartbeat and one pipeline
// orchestrator, released in order on shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/telepair/webcheck/internal/bus"
	"github.com/telepair/webcheck/internal/config"
	"github.com/telepair/webcheck/internal/pipeline"
	"github.com/telepair/webcheck/internal/status"
	"github.com/telepair/webcheck/pkg/health"
	"github.com/telepair/webcheck/pkg/logger"
	"github.com/telepair/webcheck/pkg/natsx/client"
	"github.com/telepair/webcheck/pkg/natsx/embed"
	"github.com/telepair/webcheck/pkg/shutdown"
	"github.com/telepair/webcheck/pkg/tlsutil"
)

const natsCheckInterval = 30 * time.Second

// Role selects the orchestrator a process runs.
type Role string

const (
	RoleProducer  Role = "producer"
	RoleConsumer  Role = "consumer"
	RoleRoundTrip Role = "round-trip"
)

func (r Role) valid() bool {
	return r == RoleProducer || r == RoleConsumer || r == RoleRoundTrip
}

// Options are the process-level inputs that do not come from the file.
type Options struct {
	Role     Role
	Logger   *slog.Logger
	Stdout   io.Writer // console writer output, stdout when nil
	Password config.PasswordSource
}

type runner interface {
	Run(ctx context.Context) error
}

// Server is one running webcheck process.
type Server struct {
	cfg      *config.Config
	role     Role
	log      *slog.Logger
	shutdown *shutdown.Manager

	registry *health.Registry
	metrics  *pipeline.Metrics
	embedded *embed.Server
	control  *client.Client
	health   *health.Server
	status   *status.Reporter
	dialer   *bus.Dialer
	endpoint pipeline.Endpoint
	run      runner
}

// New builds every component of the process. Anything started before a
// failure is released again.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *Server, err error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if !opts.Role.valid() {
		return nil, fmt.Errorf("%w: unknown role %q", pipeline.ErrConfig, opts.Role)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.OrDiscard(opts.Logger)
	s := &Server{
		cfg:  cfg,
		role: opts.Role,
		log:  logger.Component(log, "server").With("role", string(opts.Role)),
		shutdown: shutdown.NewManager().
			WithTimeout(cfg.ShutdownTimeout()).
			WithLogger(log),
		registry: health.NewRegistry(cfg.Health.MetricsNamespace),
	}
	defer func() {
		if err != nil {
			_ = s.shutdown.Shutdown()
		}
	}()

	if s.metrics, err = pipeline.NewMetrics(s.registry.Registerer()); err != nil {
		return nil, fmt.Errorf("register pipeline metrics: %w", err)
	}
	if err = s.setupBus(log); err != nil {
		return nil, err
	}
	if err = s.setupControl(ctx, log); err != nil {
		return nil, err
	}
	if err = s.setupHealth(log); err != nil {
		return nil, err
	}
	if s.run, err = s.orchestrator(ctx, opts, log); err != nil {
		return nil, err
	}
	return s, nil
}

// setupBus starts the embedded server when enabled and prepares the dialer.
func (s *Server) setupBus(log *slog.Logger) error {
	tlsCfg, err := tlsutil.Load(s.cfg.Bus.TLS)
	if err != nil {
		return fmt.Errorf("%w: bus tls: %w", pipeline.ErrConfig, err)
	}

	uri := strings.Join(s.cfg.Bus.NATS.URLs, ",")
	if s.cfg.Server.EnableEmbedNATS {
		s.embedded, err = embed.New(s.cfg.Server.EmbedNATS, log)
		if err != nil {
			return fmt.Errorf("create embedded nats: %w", err)
		}
		if err := s.embedded.Start(); err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		s.shutdown.RegisterFunc("embedded-nats", func(context.Context) error {
			return s.embedded.Shutdown()
		})
		uri = s.embedded.ClientURL()
		s.log.Info("embedded NATS server started", "url", uri)
	}

	natsMetrics, err := client.NewMetrics(s.registry.Registerer())
	if err != nil {
		return fmt.Errorf("register nats metrics: %w", err)
	}
	s.dialer = &bus.Dialer{Config: s.cfg.Bus.Config, Logger: log, Metrics: natsMetrics}
	s.endpoint = pipeline.Endpoint{URI: uri, Topic: s.cfg.Bus.Topic, TLS: tlsCfg}
	return nil
}

// setupControl opens the connection used by the heartbeat and the health
// checker. The pipeline itself dials its own connections.
func (s *Server) setupControl(ctx context.Context, log *slog.Logger) error {
	natsCfg := s.cfg.Bus.NATS
	natsCfg.URLs = strings.Split(s.endpoint.URI, ",")
	natsCfg.TLS = s.endpoint.TLS
	natsCfg.Name = fmt.Sprintf("%s-%s-control", client.DefaultName, s.role)

	var err error
	if s.control, err = client.NewClient(natsCfg, log, nil); err != nil {
		return err
	}
	s.shutdown.RegisterFunc("nats-control", func(context.Context) error {
		return s.control.Close()
	})

	if !s.cfg.Status.Enabled {
		return nil
	}
	bucket, err := s.control.Bucket(ctx, s.cfg.Status.BucketConfig(s.cfg.Bus.Stream.Storage))
	if err != nil {
		return fmt.Errorf("status bucket: %w", err)
	}
	s.status = status.NewReporter(ctx, bucket, string(s.role), s.cfg.Status, log)
	return nil
}

func (s *Server) setupHealth(log *slog.Logger) error {
	if !s.cfg.Health.Enabled {
		return nil
	}
	var err error
	if s.health, err = health.NewServer(s.cfg.Health, s.registry, log); err != nil {
		return err
	}
	if err := s.health.RegisterChecker("nats-connection", natsCheckInterval, func(context.Context) error {
		return s.control.HealthCheck()
	}); err != nil {
		return err
	}
	s.shutdown.Register("health", s.health)
	return nil
}

// Endpoint is where the orchestrator publishes or subscribes.
func (s *Server) Endpoint() pipeline.Endpoint { return s.endpoint }

// HealthAddr is the bound address of the health endpoint, empty when disabled.
func (s *Server) HealthAddr() string {
	if s.health == nil {
		return ""
	}
	return s.health.Addr()
}

// Run serves until the orchestrator returns, a signal arrives or ctx is
// cancelled, then releases every component.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := s.shutdown.NotifyContext(ctx)
	defer stop()

	if s.health != nil {
		if err := s.health.Start(); err != nil {
			return errors.Join(err, s.shutdown.Shutdown())
		}
	}

	var wg sync.WaitGroup
	if s.status != nil {
		wg.Go(func() { _ = s.status.Run(ctx) })
	}
	if s.health != nil {
		s.health.SetReady(true)
	}
	s.log.Info("running", "topic", s.endpoint.Topic, "bus", s.endpoint.URI, "health", s.HealthAddr())

	err := s.run.Run(ctx)
	switch {
	case err == nil:
		s.log.Info("orchestrator finished")
	case pipeline.IsRetryable(err):
		s.log.Warn("orchestrator stopped, restart to resume", "error", err)
	default:
		s.log.Error("orchestrator failed", "error", err)
	}

	stop()
	wg.Wait()
	return errors.Join(err, s.shutdown.Shutdown())
}
