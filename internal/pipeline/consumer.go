package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/telepair/webcheck/pkg/logger"
)

// Consumer runs a Decoder and a Dispatcher around a shared queue and a single
// subscriber connection.
type Consumer struct {
	Endpoint      Endpoint
	Dialer        Dialer
	Group         string
	Writers       []Writer
	QueueCapacity int
	OnMalformed   MalformedPolicy
	OnWriterError WriterErrorPolicy
	Logger        *slog.Logger
	Metrics       *Metrics
}

func (c *Consumer) validate() error {
	if len(c.Writers) == 0 {
		return fmt.Errorf("%w: at least one writer is required", ErrConfig)
	}
	if c.Dialer == nil {
		return fmt.Errorf("%w: consumer has no dialer", ErrConfig)
	}
	return c.Endpoint.validate()
}

// Run returns nil after the sentinel has been consumed and every queued record
// has been written, or when ctx is cancelled. A soft decoder stop is returned
// as a retryable error once the dispatcher has drained. The subscriber is
// closed on every path.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.validate(); err != nil {
		return err
	}
	log := logger.Component(c.Logger, "consumer")
	group := c.Group
	if group == "" {
		group = DefaultGroupID
	}
	queue, err := NewQueue[Delivery](capacityOr(c.QueueCapacity))
	if err != nil {
		return err
	}

	sub, err := c.Dialer.DialSubscriber(ctx, c.Endpoint, group)
	if err != nil {
		log.Error("connect failed", "uri", c.Endpoint.URI, "error", err)
		return Fatal("consumer", "dial", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Warn("close subscriber", "error", err)
		}
	}()

	log.Info("consumer started", "topic", c.Endpoint.Topic, "group", group, "writers", len(c.Writers))
	var soft error
	g, gctx := errgroup.WithContext(ctx)
	dec := &Decoder{Subscriber: sub, Queue: queue, OnMalformed: c.OnMalformed, Logger: c.Logger, Metrics: c.Metrics}
	g.Go(func() error {
		err := dec.Run(gctx)
		if IsRetryable(err) {
			// the queue is closed; let the dispatcher drain instead of cancelling it
			soft = err
			return nil
		}
		return err
	})
	disp := &Dispatcher{Queue: queue, Writers: c.Writers, OnWriterError: c.OnWriterError, Logger: c.Logger, Metrics: c.Metrics}
	g.Go(func() error { return disp.Run(gctx) })

	err = settle(ctx, g.Wait())
	if err == nil && ctx.Err() == nil {
		err = soft
	}
	log.Info("consumer stopped", "error", err)
	return err
}
