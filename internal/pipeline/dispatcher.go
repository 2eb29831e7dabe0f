package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/telepair/webcheck/internal/record"
	"github.com/telepair/webcheck/pkg/logger"
)

// Dispatcher hands every queued record to all writers at once and waits for
// them before taking the next record.
type Dispatcher struct {
	Queue         *Queue[Delivery]
	Writers       []Writer
	OnWriterError WriterErrorPolicy
	Logger        *slog.Logger
	Metrics       *Metrics
}

// Run returns nil once the queue is closed and drained. A delivery is acked
// after its writers returned. Once ctx is done nothing more is written or
// acked, so the bus redelivers whatever was still queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	log := logger.Component(d.Logger, "dispatcher")
	for {
		del, err := d.Queue.Get(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		// Get hands out buffered items even after cancellation.
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Metrics.setDepth("consumer", d.Queue.Len())

		err = d.Dispatch(ctx, del.Record)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Error("writers failed", "payload", del.Record.String(), "error", err)
			if d.OnWriterError == WriterErrorStop {
				return Fatal("dispatcher", "write", err)
			}
		}
		ack(log, del.Msg)
	}
}

// Dispatch calls every writer with rec concurrently. A failing writer does
// not cancel its siblings. The result joins all non-ignorable failures.
func (d *Dispatcher) Dispatch(ctx context.Context, rec record.Record) error {
	log := logger.Component(d.Logger, "dispatcher")
	errs := make([]error, len(d.Writers))

	var wg sync.WaitGroup
	for i, w := range d.Writers {
		name := nameOf(w, fmt.Sprintf("writer-%d", i))
		wg.Go(func() {
			status, err := w.Write(ctx, rec)
			switch {
			case err == nil && status == 0:
				d.Metrics.recordWrite(name, "skipped")
				log.Debug("nothing written", "writer", name, "url", rec.URL)
			case err == nil:
				d.Metrics.recordWrite(name, "ok")
				log.Debug("written", "writer", name, "status", status, "url", rec.URL)
			case IsIgnorable(err):
				d.Metrics.recordWrite(name, "ignored")
				log.Debug("write ignored", "writer", name, "url", rec.URL, "reason", err)
			default:
				d.Metrics.recordWrite(name, "error")
				errs[i] = fmt.Errorf("writer %s: %w", name, err)
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}
