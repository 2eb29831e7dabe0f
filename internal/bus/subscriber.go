package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telepair/webcheck/internal/pipeline"
	"github.com/telepair/webcheck/pkg/natsx/client"
)

// Subscriber pulls messages for one durable consumer.
type Subscriber struct {
	client *client.Client
	iter   jetstream.MessagesContext
}

// Next blocks for the next message. Cancelling ctx stops the subscription for
// good.
func (s *Subscriber) Next(ctx context.Context) (pipeline.Message, error) {
	stop := context.AfterFunc(ctx, s.iter.Stop)
	defer stop()

	msg, err := s.iter.Next()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
			return nil, fmt.Errorf("subscription closed: %w", err)
		}
		return nil, fmt.Errorf("next message: %w", err)
	}
	return message{msg}, nil
}

// Close stops pulling and closes the connection.
func (s *Subscriber) Close() error {
	s.iter.Stop()
	return s.client.Close()
}

type message struct{ msg jetstream.Msg }

func (m message) Data() []byte { return m.msg.Data() }

func (m message) Ack() error { return m.msg.Ack() }
