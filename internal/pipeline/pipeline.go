// Package pipeline moves records from collectors through a bus topic to writers.
//
// The producer side runs one Scheduler per Collector feeding a shared Queue that
// an Encoder drains onto the bus. The consumer side runs a Decoder that fills a
// Queue drained by a Dispatcher, which calls every Writer for each record.
package pipeline

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/telepair/webcheck/internal/record"
)

const (
	// DefaultGroupID is the consumer group every consumer joins.
	DefaultGroupID = "webchecker"
	// DefaultInterval is the collection cadence.
	DefaultInterval = 15 * time.Second
)

// Collector produces one measurement per call.
type Collector interface {
	Collect(ctx context.Context) (record.Record, error)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(ctx context.Context) (record.Record, error)

func (f CollectorFunc) Collect(ctx context.Context) (record.Record, error) { return f(ctx) }

// Writer consumes one decoded record. The status is the number of records the
// writer stored or emitted: 1 normally, 0 when it deliberately kept nothing,
// such as a duplicate key. Writers share the record with their siblings and
// must not retain pointers into it.
type Writer interface {
	Write(ctx context.Context, rec record.Record) (int, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, rec record.Record) (int, error)

func (f WriterFunc) Write(ctx context.Context, rec record.Record) (int, error) { return f(ctx, rec) }

// Namer is implemented by collectors and writers that want a stable label in
// logs and metrics.
type Namer interface {
	Name() string
}

func nameOf(v any, fallback string) string {
	if n, ok := v.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fallback
}

// Publisher sends payloads to the bus. Publish returns only after the bus
// acknowledged the message.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Close() error
}

// Message is one delivery from a Subscriber.
type Message interface {
	Data() []byte
	Ack() error
}

// Delivery is a decoded record on its way to the writers. Msg is acknowledged
// only after every writer has been called with Record.
type Delivery struct {
	Record record.Record
	Msg    Message
}

// Subscriber receives messages for one topic and consumer group.
type Subscriber interface {
	Next(ctx context.Context) (Message, error)
	Close() error
}

// Endpoint locates a bus topic.
type Endpoint struct {
	URI   string
	Topic string
	TLS   *tls.Config
}

func (e Endpoint) validate() error {
	if e.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrConfig)
	}
	return nil
}

// Dialer opens bus connections. Each returned value owns its connection.
type Dialer interface {
	DialPublisher(ctx context.Context, ep Endpoint) (Publisher, error)
	DialSubscriber(ctx context.Context, ep Endpoint, group string) (Subscriber, error)
}

// MalformedPolicy decides what the decoder does with a payload it cannot parse.
type MalformedPolicy string

const (
	// MalformedStop ends the decoder.
	MalformedStop MalformedPolicy = "stop"
	// MalformedSkip drops the message and keeps consuming.
	MalformedSkip MalformedPolicy = "skip"
)

// WriterErrorPolicy decides what the dispatcher does after a failed write.
type WriterErrorPolicy string

const (
	// WriterErrorContinue moves on to the next record.
	WriterErrorContinue WriterErrorPolicy = "continue"
	// WriterErrorStop ends the consumer.
	WriterErrorStop WriterErrorPolicy = "stop"
)

// ParseMalformedPolicy validates a configured policy; empty means stop.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch p := MalformedPolicy(s); p {
	case "":
		return MalformedStop, nil
	case MalformedStop, MalformedSkip:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown malformed policy %q", ErrConfig, s)
}

// ParseWriterErrorPolicy validates a configured policy; empty means continue.
func ParseWriterErrorPolicy(s string) (WriterErrorPolicy, error) {
	switch p := WriterErrorPolicy(s); p {
	case "":
		return WriterErrorContinue, nil
	case WriterErrorContinue, WriterErrorStop:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown writer error policy %q", ErrConfig, s)
}
