package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telepair/webcheck/pkg/natsx/client"
)

// Publisher publishes with JetStream acknowledgement.
type Publisher struct {
	client *client.Client
	log    *slog.Logger
}

// Publish returns after the stream stored the message.
func (p *Publisher) Publish(ctx context.Context, topic string, data []byte) error {
	ack, err := p.client.JetStream().Publish(ctx, topic, data)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.log.Debug("acked", "stream", ack.Stream, "seq", ack.Sequence)
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
