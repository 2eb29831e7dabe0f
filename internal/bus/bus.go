// Package bus carries wire payloads over NATS JetStream. A topic is a subject
// captured by a stream; a consumer group is a durable pull consumer on it.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telepair/webcheck/internal/pipeline"
	"github.com/telepair/webcheck/pkg/logger"
	"github.com/telepair/webcheck/pkg/natsx/client"
)

const (
	DefaultStream     = "WEBCHECK"
	DefaultAckWait    = 30 * time.Second
	DefaultMaxDeliver = 5
)

// Config is the bus section of the configuration.
type Config struct {
	NATS       client.Config       `yaml:"nats"        json:"nats"`
	Stream     client.StreamConfig `yaml:"stream"      json:"stream"`
	AckWait    time.Duration       `yaml:"ack_wait"    json:"ack_wait"`
	MaxDeliver int                 `yaml:"max_deliver" json:"max_deliver"`
}

// DefaultConfig stores the topic in a file-backed stream named WEBCHECK.
func DefaultConfig() Config {
	return Config{
		NATS:       client.DefaultConfig(),
		Stream:     client.StreamConfig{Name: DefaultStream, Retention: "limits", Storage: "file", Replicas: 1},
		AckWait:    DefaultAckWait,
		MaxDeliver: DefaultMaxDeliver,
	}
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	c.NATS.SetDefaults()
	if c.Stream.Name == "" {
		c.Stream.Name = DefaultStream
	}
	c.Stream.SetDefaults()
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
}

// Validate checks the connection settings. Stream subjects are derived from
// the topic at dial time when left empty.
func (c *Config) Validate() error {
	if err := c.NATS.Validate(); err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	if err := client.ValidateName(c.Stream.Name); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	return nil
}

// Dialer opens JetStream publishers and subscribers. Every dial opens its own
// connection.
type Dialer struct {
	Config  Config
	Logger  *slog.Logger
	Metrics *client.Metrics
}

var _ pipeline.Dialer = (*Dialer)(nil)

// connect opens a connection for ep and makes sure the stream capturing the
// topic exists.
func (d *Dialer) connect(ctx context.Context, ep pipeline.Endpoint) (*client.Client, jetstream.Stream, error) {
	if err := client.ValidateSubject(ep.Topic, false); err != nil {
		return nil, nil, fmt.Errorf("topic: %w", err)
	}
	cfg := d.Config
	cfg.SetDefaults()
	if ep.URI != "" {
		cfg.NATS.URLs = strings.Split(ep.URI, ",")
	}
	if ep.TLS != nil {
		cfg.NATS.TLS = ep.TLS
	}
	if len(cfg.Stream.Subjects) == 0 {
		cfg.Stream.Subjects = []string{ep.Topic}
	}

	c, err := client.NewClient(cfg.NATS, d.Logger, d.Metrics)
	if err != nil {
		return nil, nil, err
	}
	stream, err := c.EnsureStream(ctx, cfg.Stream)
	if err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	return c, stream, nil
}

// DialPublisher connects for publishing to ep.Topic.
func (d *Dialer) DialPublisher(ctx context.Context, ep pipeline.Endpoint) (pipeline.Publisher, error) {
	c, _, err := d.connect(ctx, ep)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: c, log: logger.Component(d.Logger, "bus.publisher")}, nil
}

// DialSubscriber joins group on ep.Topic. The group is a durable consumer, so
// members share deliveries and progress survives restarts.
func (d *Dialer) DialSubscriber(ctx context.Context, ep pipeline.Endpoint, group string) (pipeline.Subscriber, error) {
	if err := client.ValidateName(group); err != nil {
		return nil, fmt.Errorf("consumer group: %w", err)
	}
	c, stream, err := d.connect(ctx, ep)
	if err != nil {
		return nil, err
	}
	cfg := d.Config
	cfg.SetDefaults()

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       group,
		FilterSubject: ep.Topic,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create consumer %s: %w", group, err)
	}
	iter, err := cons.Messages()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("consume %s: %w", group, err)
	}
	return &Subscriber{client: c, iter: iter}, nil
}
