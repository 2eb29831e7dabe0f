package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/telepair/webcheck/internal/record"
	"github.com/telepair/webcheck/pkg/logger"
)

// Producer runs one Scheduler per Collector and one Encoder around a shared
// queue and a single publisher connection.
type Producer struct {
	Endpoint      Endpoint
	Dialer        Dialer
	Collectors    []Collector
	Interval      time.Duration
	QueueCapacity int
	Logger        *slog.Logger
	Metrics       *Metrics
}

func (p *Producer) validate() error {
	if len(p.Collectors) == 0 {
		return fmt.Errorf("%w: at least one collector is required", ErrConfig)
	}
	if p.Dialer == nil {
		return fmt.Errorf("%w: producer has no dialer", ErrConfig)
	}
	if p.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrConfig, p.Interval)
	}
	return p.Endpoint.validate()
}

// Run blocks until a task fails or ctx is cancelled. Cancelling ctx is a
// clean stop and returns nil. The publisher is closed on every path.
func (p *Producer) Run(ctx context.Context) error {
	if err := p.validate(); err != nil {
		return err
	}
	log := logger.Component(p.Logger, "producer")
	interval := p.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	queue, err := NewQueue[record.Record](capacityOr(p.QueueCapacity))
	if err != nil {
		return err
	}

	pub, err := p.Dialer.DialPublisher(ctx, p.Endpoint)
	if err != nil {
		log.Error("connect failed", "uri", p.Endpoint.URI, "error", err)
		return Fatal("producer", "dial", err)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("close publisher", "error", err)
		}
	}()

	log.Info("producer started", "topic", p.Endpoint.Topic, "collectors", len(p.Collectors), "interval", interval)
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range p.Collectors {
		s := &Scheduler{
			Name:      nameOf(c, fmt.Sprintf("collector-%d", i)),
			Collector: c,
			Interval:  interval,
			Queue:     queue,
			Logger:    p.Logger,
			Metrics:   p.Metrics,
		}
		g.Go(func() error { return s.Run(gctx) })
	}
	enc := &Encoder{Queue: queue, Publisher: pub, Topic: p.Endpoint.Topic, Logger: p.Logger, Metrics: p.Metrics}
	g.Go(func() error { return enc.Run(gctx) })

	err = settle(ctx, g.Wait())
	log.Info("producer stopped", "error", err)
	return err
}

func capacityOr(n int) int {
	if n == 0 {
		return DefaultQueueCapacity
	}
	return n
}

// settle turns the cancellation that follows a stop of the parent context
// into a clean exit.
func settle(parent context.Context, err error) error {
	if err != nil && parent.Err() != nil && errors.Is(err, parent.Err()) {
		return nil
	}
	return err
}
