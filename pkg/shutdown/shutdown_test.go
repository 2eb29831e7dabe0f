package shutdown

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestFunc_Shutdown(t *testing.T) {
	called := false
	f := Func(func(_ context.Context) error {
		called = true
		return nil
	})
	if err := f.Shutdown(context.Background()); err != nil {
		t.Errorf("Func.Shutdown() error = %v", err)
	}
	if !called {
		t.Error("Func.Shutdown() did not call the function")
	}
}

func TestNewManager(t *testing.T) {
	m := NewManager()
	if m.timeout != DefaultShutdownTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultShutdownTimeout, m.timeout)
	}
	if len(m.signals) != 3 {
		t.Errorf("expected 3 signals, got %d", len(m.signals))
	}

	m.WithTimeout(0).WithSignals().WithLogger(nil)
	if m.timeout != DefaultShutdownTimeout || len(m.signals) != 3 || m.logger == nil {
		t.Error("zero-value options must not override defaults")
	}
	m.WithTimeout(time.Second).WithSignals(syscall.SIGUSR1)
	if m.timeout != time.Second || len(m.signals) != 1 {
		t.Error("options were not applied")
	}
}

func TestManager_ReverseOrder(t *testing.T) {
	m := NewManager()
	var order []string
	for _, name := range []string{"logger", "nats", "health"} {
		m.RegisterFunc(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	m.Register("nil", nil)
	m.RegisterFunc("nil-func", nil)

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	want := []string{"health", "nats", "logger"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestManager_ErrorsAreJoined(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	m := NewManager()
	m.RegisterFunc("a", func(context.Context) error { return errA })
	m.RegisterFunc("ok", func(context.Context) error { return nil })
	m.RegisterFunc("b", func(context.Context) error { return errB })

	err := m.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Shutdown() error = %v, want both failures", err)
	}
}

func TestManager_Once(t *testing.T) {
	var calls atomic.Int32
	m := NewManager()
	m.RegisterFunc("counter", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	_ = m.Shutdown()
	_ = m.Shutdown()
	if calls.Load() != 1 {
		t.Errorf("shutdown ran %d times, want 1", calls.Load())
	}
}

func TestManager_Timeout(t *testing.T) {
	var skipped atomic.Bool
	m := NewManager().WithTimeout(50 * time.Millisecond)
	m.RegisterFunc("never-reached", func(context.Context) error {
		skipped.Store(true)
		return nil
	})
	m.RegisterFunc("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := m.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown() error = %v, want deadline exceeded", err)
	}
	if skipped.Load() {
		t.Error("component after the deadline should not run")
	}
}

func TestManager_NotifyContext(t *testing.T) {
	m := NewManager().WithSignals(syscall.SIGUSR1)
	ctx, stop := m.NotifyContext(context.Background())
	defer stop()

	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Signal(syscall.SIGUSR1); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled by signal")
	}
}

func TestManager_WaitParentCancel(t *testing.T) {
	var done atomic.Bool
	m := NewManager()
	m.RegisterFunc("flag", func(context.Context) error {
		done.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !done.Load() {
		t.Error("Wait() did not shut down registered components")
	}
}
