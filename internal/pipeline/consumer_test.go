package pipeline

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telepair/webcheck/internal/record"
	"github.com/telepair/webcheck/internal/writer/console"
	"github.com/telepair/webcheck/internal/writer/postgres"
)

func TestConsumerRequiresWriters(t *testing.T) {
	bus := newMemBus()
	c := &Consumer{Endpoint: Endpoint{Topic: "webcheck"}, Dialer: bus}
	require.ErrorIs(t, c.Run(context.Background()), ErrConfig)
	assert.Zero(t, bus.subDials.Load())
}

func TestConsumerDialFailure(t *testing.T) {
	bus := newMemBus()
	bus.dialErr = errors.New("tls: bad certificate")
	c := &Consumer{Endpoint: Endpoint{Topic: "webcheck"}, Dialer: bus, Writers: []Writer{&recordingWriter{}}}
	err := c.Run(context.Background())
	require.ErrorIs(t, err, bus.dialErr)
	assert.Equal(t, ExitFailed, ExitCode(err))
}

func TestConsumerDrainsUntilSentinel(t *testing.T) {
	bus := newMemBus()
	for i := range 5 {
		bus.feed(mustEncode(record.Record{Time: int64(i), URL: "u"}))
	}
	bus.feed(record.Sentinel)

	a, b := &recordingWriter{name: "a"}, &recordingWriter{name: "b", err: errBoom}
	c := &Consumer{Endpoint: Endpoint{Topic: "webcheck"}, Dialer: bus, Writers: []Writer{a, b}, QueueCapacity: 2}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))
	assert.Len(t, a.records(), 5)
	assert.Len(t, b.records(), 5, "failing writer keeps receiving records")
	assert.Equal(t, DefaultGroupID, bus.lastGroup.Load())
	assert.EqualValues(t, 1, bus.closes.Load(), "subscriber must be closed")
}

func TestConsumerSoftStopAfterDraining(t *testing.T) {
	bus := newMemBus()
	bus.feed(mustEncode(record.Record{Time: 1, URL: "first"}), []byte(`{"broken":true}`))

	w := &recordingWriter{name: "w"}
	c := &Consumer{Endpoint: Endpoint{Topic: "webcheck"}, Dialer: bus, Writers: []Writer{w}}
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ExitFailed, ExitCode(err))
	require.Len(t, w.records(), 1)
	assert.Equal(t, "first", w.records()[0].URL)
}

func TestConsumerCancellation(t *testing.T) {
	bus := newMemBus()
	c := &Consumer{Endpoint: Endpoint{Topic: "webcheck"}, Dialer: bus, Writers: []Writer{&recordingWriter{}}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer ignored cancellation")
	}
	assert.EqualValues(t, 1, bus.closes.Load())
}

func TestConsumerConsoleAndPostgresWriters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	pg, err := postgres.New(db, "", 0, nil)
	require.NoError(t, err)

	insert := regexp.QuoteMeta(`INSERT INTO "webcheck" (time, url, status, response_time, regex_matched) VALUES (to_timestamp($1), $2, $3, $4, $5) ON CONFLICT (time, url) DO NOTHING`)
	args := []any{int64(1700000000), "https://example.com", 200, 0.123, true}
	mock.ExpectExec(insert).WithArgs(toDriver(args)...).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(toDriver(args)...).WillReturnResult(sqlmock.NewResult(0, 0))

	var out bytes.Buffer
	payload := []byte(`[1700000000, "https://example.com", 200, 0.123, true]`)
	bus := newMemBus()
	bus.feed(payload, payload, record.Sentinel)

	c := &Consumer{
		Endpoint: Endpoint{Topic: "webcheck"},
		Dialer:   bus,
		Writers:  []Writer{console.New(&out), pg},
		// a failing write would end the run
		OnWriterError: WriterErrorStop,
	}
	require.NoError(t, c.Run(context.Background()))

	want := "console writer: [1700000000,\"https://example.com\",200,0.123,true]\n"
	assert.Equal(t, want+want, out.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendSentinelStopsConsumer(t *testing.T) {
	bus := newMemBus()
	ep := Endpoint{Topic: "webcheck"}
	bus.feed(mustEncode(record.Record{Time: 1, URL: "u"}))
	require.NoError(t, SendSentinel(context.Background(), bus, ep))
	assert.EqualValues(t, 1, bus.closes.Load())

	w := &recordingWriter{}
	require.NoError(t, (&Consumer{Endpoint: ep, Dialer: bus, Writers: []Writer{w}}).Run(context.Background()))
	assert.Len(t, w.records(), 1)
}
