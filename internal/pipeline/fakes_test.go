package pipeline

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telepair/webcheck/internal/record"
)

// memBus is an in-process bus: everything published is delivered to the
// subscriber in order.
type memBus struct {
	mu        sync.Mutex
	published [][]byte
	acked     int

	msgs chan []byte

	dialErr    error
	publishErr error
	recvErr    error

	pubDials  atomic.Int32
	subDials  atomic.Int32
	closes    atomic.Int32
	lastGroup atomic.Value
}

func newMemBus() *memBus {
	return &memBus{msgs: make(chan []byte, 1024)}
}

func (b *memBus) DialPublisher(_ context.Context, _ Endpoint) (Publisher, error) {
	b.pubDials.Add(1)
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	return &memPublisher{bus: b}, nil
}

func (b *memBus) DialSubscriber(_ context.Context, _ Endpoint, group string) (Subscriber, error) {
	b.subDials.Add(1)
	b.lastGroup.Store(group)
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	return &memSubscriber{bus: b}, nil
}

// feed queues raw payloads as if another producer had published them.
func (b *memBus) feed(payloads ...[]byte) {
	for _, p := range payloads {
		b.msgs <- p
	}
}

func (b *memBus) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *memBus) publishedRecords() []record.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]record.Record, 0, len(b.published))
	for _, p := range b.published {
		r, err := record.Decode(p)
		if err == nil {
			out = append(out, r)
		}
	}
	return out
}

func (b *memBus) ackCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acked
}

type memPublisher struct{ bus *memBus }

func (p *memPublisher) Publish(ctx context.Context, _ string, data []byte) error {
	if p.bus.publishErr != nil {
		return p.bus.publishErr
	}
	p.bus.mu.Lock()
	p.bus.published = append(p.bus.published, data)
	p.bus.mu.Unlock()
	select {
	case p.bus.msgs <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *memPublisher) Close() error {
	p.bus.closes.Add(1)
	return nil
}

type memSubscriber struct{ bus *memBus }

func (s *memSubscriber) Next(ctx context.Context) (Message, error) {
	select {
	case data := <-s.bus.msgs:
		return &memMessage{bus: s.bus, data: data}, nil
	default:
	}
	if s.bus.recvErr != nil {
		return nil, s.bus.recvErr
	}
	select {
	case data := <-s.bus.msgs:
		return &memMessage{bus: s.bus, data: data}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memSubscriber) Close() error {
	s.bus.closes.Add(1)
	return nil
}

type memMessage struct {
	bus  *memBus
	data []byte
}

func (m *memMessage) Data() []byte { return m.data }

func (m *memMessage) Ack() error {
	m.bus.mu.Lock()
	m.bus.acked++
	m.bus.mu.Unlock()
	return nil
}

// recordingWriter remembers every record it was given.
type recordingWriter struct {
	name string
	err  error

	mu   sync.Mutex
	recs []record.Record
}

func (w *recordingWriter) Name() string { return w.name }

func (w *recordingWriter) Write(_ context.Context, rec record.Record) (int, error) {
	w.mu.Lock()
	w.recs = append(w.recs, rec)
	w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	return 1, nil
}

func (w *recordingWriter) records() []record.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]record.Record(nil), w.recs...)
}

var errBoom = errors.New("boom")

// clockCollector stamps records with the current time.
type clockCollector struct {
	url   string
	calls atomic.Int32
	err   error
}

func (c *clockCollector) Name() string { return c.url }

func (c *clockCollector) Collect(context.Context) (record.Record, error) {
	c.calls.Add(1)
	if c.err != nil {
		return record.Record{}, c.err
	}
	return record.Record{Time: nowUnix(), URL: c.url, Status: 200, ResponseTime: 0.01}, nil
}

func mustEncode(r record.Record) []byte {
	b, err := record.Encode(r)
	if err != nil {
		panic(err)
	}
	return b
}

func nowUnix() int64 { return time.Now().Unix() }

func toDriver(args []any) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}
