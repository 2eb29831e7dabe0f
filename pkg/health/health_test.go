package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterCheckerValidation(t *testing.T) {
	m := NewManager(nil)
	defer func() { _ = m.Stop(context.Background()) }()

	ok := func(context.Context) error { return nil }
	tests := []struct {
		name     string
		checker  string
		interval time.Duration
		fn       CheckFunc
		wantErr  bool
	}{
		{"valid", "nats", time.Second, ok, false},
		{"duplicate", "nats", time.Second, ok, true},
		{"empty name", "  ", time.Second, ok, true},
		{"nil func", "x", time.Second, nil, true},
		{"zero interval", "y", 0, ok, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.RegisterChecker(tt.checker, tt.interval, tt.fn)
			if (err != nil) != tt.wantErr {
				t.Errorf("RegisterChecker() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManagerStatus(t *testing.T) {
	m := NewManager(nil)
	defer func() { _ = m.Stop(context.Background()) }()

	if status, anyFail := m.Status(); status != nil || anyFail {
		t.Fatalf("empty manager: status = %v, anyFail = %v", status, anyFail)
	}

	var healthy atomic.Bool
	healthy.Store(true)
	if err := m.RegisterChecker("flaky", time.Second, func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("down")
	}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		s, _ := m.Status()
		return s["flaky"] == healthStatusOK
	})

	healthy.Store(false)
	waitFor(t, func() bool {
		_, anyFail := m.Status()
		return anyFail
	})
}

func TestManagerStopTimeout(t *testing.T) {
	m := NewManager(nil)
	block := make(chan struct{})
	defer close(block)
	if err := m.RegisterChecker("stuck", time.Second, func(context.Context) error {
		<-block
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop() error = %v, want deadline exceeded", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
