// Package shutdown turns OS signals into context cancellation and releases
// registered components in reverse registration order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const (
	// DefaultShutdownTimeout is the default timeout for graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// Shutdowner represents any component that can be gracefully shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Func is a function that performs shutdown operations.
type Func func(ctx context.Context) error

// Shutdown implements Shutdowner interface.
func (f Func) Shutdown(ctx context.Context) error {
	return f(ctx)
}

type entry struct {
	name string
	s    Shutdowner
}

// Manager manages graceful shutdown of multiple components.
//
// Components are released one at a time, last registered first, so that a
// component never outlives something it depends on.
type Manager struct {
	mu      sync.Mutex
	entries []entry
	signals []os.Signal
	timeout time.Duration
	logger  *slog.Logger
	once    sync.Once
	err     error
}

// NewManager creates a new shutdown manager with default configuration.
func NewManager() *Manager {
	return &Manager{
		signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT},
		timeout: DefaultShutdownTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
}

// WithTimeout sets the shutdown timeout.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	if timeout > 0 {
		m.timeout = timeout
	}
	return m
}

// WithSignals sets the signals to listen for.
func (m *Manager) WithSignals(signals ...os.Signal) *Manager {
	if len(signals) > 0 {
		m.signals = signals
	}
	return m
}

// WithLogger sets the logger.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger.With("component", "shutdown")
	}
	return m
}

// Register registers a shutdowner component under name.
func (m *Manager) Register(name string, s Shutdowner) {
	if s == nil {
		return
	}
	m.mu.Lock()
	m.entries = append(m.entries, entry{name: name, s: s})
	m.mu.Unlock()
}

// RegisterFunc registers a shutdown function under name.
func (m *Manager) RegisterFunc(name string, fn func(ctx context.Context) error) {
	if fn != nil {
		m.Register(name, Func(fn))
	}
}

// NotifyContext returns a context that is cancelled on the first configured
// signal or when parent is done. The returned stop function releases the
// signal subscription.
func (m *Manager) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, m.signals...)

	go func() {
		select {
		case sig := <-ch:
			m.logger.Info("received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}

// Wait blocks until a signal arrives or ctx is done, then shuts down.
func (m *Manager) Wait(ctx context.Context) error {
	ctx, stop := m.NotifyContext(ctx)
	defer stop()
	<-ctx.Done()
	return m.Shutdown()
}

// Shutdown releases every registered component once. Later calls return the
// result of the first.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.err = m.run()
	})
	return m.err
}

func (m *Manager) run() error {
	m.mu.Lock()
	entries := make([]entry, len(m.entries))
	copy(entries, m.entries)
	m.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.logger.Info("shutting down", "components", len(entries), "timeout", m.timeout)

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, context.DeadlineExceeded))
			continue
		}
		start := time.Now()
		if err := e.s.Shutdown(ctx); err != nil {
			m.logger.Error("component shutdown failed", "name", e.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			continue
		}
		m.logger.Debug("component stopped", "name", e.name, "took", time.Since(start))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	m.logger.Info("shutdown completed")
	return nil
}
