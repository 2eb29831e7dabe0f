package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/telepair/webcheck/pkg/logger"
)

// RoundTrip runs a Producer and a Consumer in one process.
type RoundTrip struct {
	Producer *Producer
	Consumer *Consumer
}

// Run returns once both sides have returned. A fatal error on one side
// cancels the other; a soft consumer stop leaves the producer running.
func (r *RoundTrip) Run(ctx context.Context) error {
	if err := errors.Join(r.Producer.validate(), r.Consumer.validate()); err != nil {
		return err
	}
	log := logger.Component(r.Producer.Logger, "roundtrip")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg         sync.WaitGroup
		prodErr    error
		consumeErr error
	)
	side := func(name string, run func(context.Context) error, out *error) {
		*out = run(ctx)
		if *out != nil && !IsRetryable(*out) {
			log.Error("side failed, cancelling the other", "side", name, "error", *out)
			cancel()
		}
	}
	wg.Go(func() { side("producer", r.Producer.Run, &prodErr) })
	wg.Go(func() { side("consumer", r.Consumer.Run, &consumeErr) })
	wg.Wait()

	return errors.Join(prodErr, consumeErr)
}
