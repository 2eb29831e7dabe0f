package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telepair/webcheck/internal/collector/page"
	"github.com/telepair/webcheck/internal/config"
	"github.com/telepair/webcheck/internal/pipeline"
	"github.com/telepair/webcheck/internal/writer/console"
	"github.com/telepair/webcheck/internal/writer/postgres"
)

func (s *Server) orchestrator(ctx context.Context, opts Options, log *slog.Logger) (runner, error) {
	switch s.role {
	case RoleProducer:
		return s.producer(log)
	case RoleConsumer:
		return s.consumer(ctx, opts, log)
	default:
		p, err := s.producer(log)
		if err != nil {
			return nil, err
		}
		c, err := s.consumer(ctx, opts, log)
		if err != nil {
			return nil, err
		}
		return &pipeline.RoundTrip{Producer: p, Consumer: c}, nil
	}
}

func (s *Server) producer(log *slog.Logger) (*pipeline.Producer, error) {
	collectors, err := Collectors(s.cfg.Sites)
	if err != nil {
		return nil, err
	}
	return &pipeline.Producer{
		Endpoint:      s.endpoint,
		Dialer:        s.dialer,
		Collectors:    collectors,
		Interval:      s.cfg.Pipeline.Interval,
		QueueCapacity: s.cfg.Pipeline.QueueCapacity,
		Logger:        log,
		Metrics:       s.metrics,
	}, nil
}

func (s *Server) consumer(ctx context.Context, opts Options, log *slog.Logger) (*pipeline.Consumer, error) {
	var writers []pipeline.Writer
	if s.cfg.Console {
		writers = append(writers, console.New(opts.Stdout))
	}
	if s.cfg.Postgres.Enabled {
		w, err := OpenPostgres(ctx, s.cfg.Postgres, opts.Password, log)
		if err != nil {
			return nil, err
		}
		s.shutdown.RegisterFunc("postgres", func(context.Context) error { return w.Close() })
		writers = append(writers, w)
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("%w: no writer enabled, turn on console or postgres", pipeline.ErrConfig)
	}

	onMalformed, onWriterError := s.cfg.Pipeline.Policies()
	return &pipeline.Consumer{
		Endpoint:      s.endpoint,
		Dialer:        s.dialer,
		Group:         pipeline.DefaultGroupID,
		Writers:       writers,
		QueueCapacity: s.cfg.Pipeline.QueueCapacity,
		OnMalformed:   onMalformed,
		OnWriterError: onWriterError,
		Logger:        log,
		Metrics:       s.metrics,
	}, nil
}

// Collectors builds one page checker per configured site.
func Collectors(sites []page.Config) ([]pipeline.Collector, error) {
	if len(sites) == 0 {
		return nil, fmt.Errorf("%w: no sites configured", pipeline.ErrConfig)
	}
	out := make([]pipeline.Collector, 0, len(sites))
	for i, site := range sites {
		c, err := page.New(site)
		if err != nil {
			return nil, fmt.Errorf("%w: sites[%d]: %w", pipeline.ErrConfig, i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// OpenPostgres resolves the password when the service URI needs one,
// connects, and creates the table when configured to.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, src config.PasswordSource, log *slog.Logger) (*postgres.Writer, error) {
	var password string
	if cfg.NeedsPassword() {
		var err error
		if password, err = src.Resolve(); err != nil {
			return nil, fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
		}
	}
	w, err := postgres.Open(ctx, cfg.Writer(password), log)
	if err != nil {
		return nil, err
	}
	if cfg.CreateTable {
		if err := w.CreateTable(ctx); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return w, nil
}
