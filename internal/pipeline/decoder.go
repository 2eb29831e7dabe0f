package pipeline

import (
	"context"
	"log/slog"

	"github.com/telepair/webcheck/internal/record"
	"github.com/telepair/webcheck/pkg/logger"
)

// Decoder reads the subscription into the consumer queue until the sentinel
// arrives. It closes the queue when it returns so the dispatcher can drain.
// Queued records are acknowledged by the dispatcher, not here.
type Decoder struct {
	Subscriber  Subscriber
	Queue       *Queue[Delivery]
	OnMalformed MalformedPolicy
	Logger      *slog.Logger
	Metrics     *Metrics
}

// Run returns nil on the sentinel. Receive failures, and malformed payloads
// under MalformedStop, end the loop with a retryable error.
func (d *Decoder) Run(ctx context.Context) error {
	defer d.Queue.Close()
	log := logger.Component(d.Logger, "decoder")

	for {
		msg, err := d.Subscriber.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("receive failed, stopping", "error", err)
			return Retryable("decoder", "receive", err)
		}

		data := msg.Data()
		if record.IsSentinel(data) {
			ack(log, msg)
			log.Info("sentinel received, stopping")
			return nil
		}

		rec, err := record.Decode(data)
		if err != nil {
			d.Metrics.recordMalformed()
			// Acked either way so a restarted consumer does not stop on it again.
			ack(log, msg)
			if d.OnMalformed == MalformedSkip {
				log.Warn("skipping malformed message", "payload", string(data), "error", err)
				continue
			}
			log.Error("malformed message, stopping", "payload", string(data), "error", err)
			return Retryable("decoder", "decode", err)
		}

		if err := d.Queue.Put(ctx, Delivery{Record: rec, Msg: msg}); err != nil {
			return err
		}
		d.Metrics.recordConsumed()
		d.Metrics.setDepth("consumer", d.Queue.Len())
	}
}

func ack(log *slog.Logger, msg Message) {
	if msg == nil {
		return
	}
	if err := msg.Ack(); err != nil {
		log.Warn("ack failed", "error", err)
	}
}
