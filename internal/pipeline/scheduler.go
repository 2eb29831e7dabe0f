package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telepair/webcheck/internal/record"
	"github.com/telepair/webcheck/pkg/logger"
)

// NextDelay is the time from now until the next wall-clock multiple of
// interval. On an exact boundary it is a full interval.
func NextDelay(now time.Time, interval time.Duration) time.Duration {
	return interval - time.Duration(now.UnixNano()%int64(interval))
}

// Scheduler calls one Collector on every interval boundary and queues the result.
type Scheduler struct {
	Name      string
	Collector Collector
	Interval  time.Duration
	Queue     *Queue[record.Record]
	Logger    *slog.Logger
	Metrics   *Metrics
}

// Run loops until ctx ends or the collector fails. Collector errors are fatal
// and are not retried.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrConfig, s.Interval)
	}
	log := logger.Component(s.Logger, "scheduler").With("collector", s.Name)
	timer := time.NewTimer(NextDelay(time.Now(), s.Interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		rec, err := s.Collector.Collect(ctx)
		s.Metrics.recordCollect(s.Name, err)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return ctx.Err()
			}
			log.Error("collect failed", "error", err)
			return Fatal("scheduler", "collect "+s.Name, err)
		}
		log.Debug("collected", "record", rec)

		if err := s.Queue.Put(ctx, rec); err != nil {
			return err
		}
		s.Metrics.setDepth("producer", s.Queue.Len())
		timer.Reset(NextDelay(time.Now(), s.Interval))
	}
}
