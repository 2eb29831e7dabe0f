package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	healthCheckMinInterval      = 1 * time.Second
	consecutiveFailureThreshold = 3

	healthStatusOK      = "ok"
	healthStatusFail    = "fail"
	healthStatusUnknown = "unknown"
)

// CheckFunc defines a checker function that returns error when unhealthy.
type CheckFunc func(ctx context.Context) error

type registeredChecker struct {
	fn               CheckFunc
	interval         time.Duration
	lastState        string
	lastErr          error
	consecutiveFails int
}

// Manager runs named health checkers periodically and keeps their last state.
type Manager struct {
	checkers map[string]*registeredChecker
	mu       sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// NewManager creates a Manager. A nil logger discards output.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		checkers: make(map[string]*registeredChecker),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
}

// RegisterChecker registers a named health checker with a given interval.
// Intervals under one second are raised to one second.
func (h *Manager) RegisterChecker(name string, interval time.Duration, fn CheckFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("checker name is required")
	}
	if fn == nil {
		return errors.New("checker func is required")
	}
	if interval <= 0 {
		return errors.New("checker interval must be greater than zero")
	}
	interval = max(interval, healthCheckMinInterval)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.checkers[name]; exists {
		return fmt.Errorf("checker %q already exists", name)
	}
	rc := &registeredChecker{fn: fn, interval: interval, lastState: healthStatusUnknown}
	h.checkers[name] = rc

	h.wg.Go(func() { h.run(name, rc) })
	h.logger.Info("registered health checker", "name", name, "interval", interval.String())
	return nil
}

// Status returns the latest state of every checker and whether any failed.
func (h *Manager) Status() (map[string]string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.checkers) == 0 {
		return nil, false
	}
	results := make(map[string]string, len(h.checkers))
	anyFail := false
	for name, c := range h.checkers {
		results[name] = c.lastState
		if c.lastState == healthStatusFail {
			anyFail = true
		}
	}
	return results, anyFail
}

// Stop stops all health checkers.
func (h *Manager) Stop(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("health manager shutdown timeout: %w", ctx.Err())
	}
}

func (h *Manager) run(name string, c *registeredChecker) {
	h.execute(name, c)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.execute(name, c)
		}
	}
}

func (h *Manager) execute(name string, c *registeredChecker) {
	err := c.fn(h.ctx)
	if h.ctx.Err() != nil {
		return
	}

	h.mu.Lock()
	prev := c.lastState
	if err != nil {
		c.lastState = healthStatusFail
		c.consecutiveFails++
	} else {
		c.lastState = healthStatusOK
		c.consecutiveFails = 0
	}
	c.lastErr = err
	fails := c.consecutiveFails
	h.mu.Unlock()

	switch {
	case err != nil && prev != healthStatusFail:
		h.logger.Warn("health check failing", "name", name, "from", prev, "error", err)
	case err != nil && fails == consecutiveFailureThreshold:
		h.logger.Error("health check persistently failing", "name", name, "consecutive_failures", fails, "error", err)
	case err == nil && prev == healthStatusFail:
		h.logger.Info("health check recovered", "name", name)
	}
}
