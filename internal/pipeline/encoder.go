package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/telepair/webcheck/internal/record"
	"github.com/telepair/webcheck/pkg/logger"
)

// Encoder drains the producer queue onto the bus, one acknowledged publish
// per record.
type Encoder struct {
	Queue     *Queue[record.Record]
	Publisher Publisher
	Topic     string
	Logger    *slog.Logger
	Metrics   *Metrics
}

// Run returns nil once the queue is closed and drained. Encode and publish
// failures are fatal.
func (e *Encoder) Run(ctx context.Context) error {
	log := logger.Component(e.Logger, "encoder").With("topic", e.Topic)
	for {
		rec, err := e.Queue.Get(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		e.Metrics.setDepth("producer", e.Queue.Len())

		data, err := record.Encode(rec)
		if err != nil {
			log.Error("encode failed", "url", rec.URL, "error", err)
			return Fatal("encoder", "encode", err)
		}

		start := time.Now()
		if err := e.Publisher.Publish(ctx, e.Topic, data); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("publish failed", "payload", string(data), "error", err)
			return Fatal("encoder", "publish", err)
		}
		e.Metrics.recordPublish(time.Since(start))
		log.Debug("published", "payload", string(data))
	}
}
