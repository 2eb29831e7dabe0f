// Package health serves liveness, readiness and Prometheus metrics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/telepair/webcheck/pkg/utils"
)

const (
	// HTTPReadHeaderTimeout is the amount of time allowed to read request headers.
	HTTPReadHeaderTimeout = 5 * time.Second
	// HTTPWriteTimeout is the timeout for writes before timing out.
	HTTPWriteTimeout = 10 * time.Second
	// HTTPIdleTimeout is the maximum amount of time to wait for the next request.
	HTTPIdleTimeout = 60 * time.Second
	// HTTPMaxHeaderBytes is the maximum number of bytes the server will read parsing request headers.
	HTTPMaxHeaderBytes = 8192
)

// Server hosts liveness/readiness endpoints and Prometheus metrics.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	checks  *Manager
	metrics *Registry
	ready   atomic.Bool
	started time.Time
	srv     *http.Server
	addr    atomic.Value // string, set once listening
}

// NewServer creates a Server around reg. A nil reg gets a fresh registry.
func NewServer(cfg Config, reg *Registry, logger *slog.Logger) (*Server, error) {
	cfg.SetDefaults()
	if err := utils.ValidateAddr(cfg.Addr); err != nil {
		return nil, fmt.Errorf("invalid addr: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if reg == nil {
		reg = NewRegistry(cfg.MetricsNamespace)
	}
	logger = logger.With("component", "health")

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		checks:  NewManager(logger),
		metrics: reg,
		started: time.Now(),
	}
	s.srv = &http.Server{
		Addr:                         cfg.Addr,
		Handler:                      s.Handler(),
		ReadHeaderTimeout:            HTTPReadHeaderTimeout,
		WriteTimeout:                 HTTPWriteTimeout,
		IdleTimeout:                  HTTPIdleTimeout,
		MaxHeaderBytes:               HTTPMaxHeaderBytes,
		DisableGeneralOptionsHandler: true,
	}
	return s, nil
}

// Handler returns the routed endpoints without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(LivezPath, s.metrics.Instrument("livez", http.HandlerFunc(s.LivezHandler)))
	mux.Handle(ReadyzPath, s.metrics.Instrument("readyz", http.HandlerFunc(s.ReadyzHandler)))
	mux.Handle(MetricsPath, s.metrics.Instrument("metrics", s.metrics.Handler()))
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("health listen %s: %w", s.cfg.Addr, err)
	}
	s.addr.Store(ln.Addr().String())
	s.logger.Info("health server listening", "addr", ln.Addr().String(),
		"livez_path", LivezPath, "readyz_path", ReadyzPath, "metrics_path", MetricsPath)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return s.cfg.Addr
}

// Shutdown stops the HTTP server and the health checkers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)
	httpErr := s.srv.Shutdown(ctx)
	checkErr := s.checks.Stop(ctx)
	if err := errors.Join(httpErr, checkErr); err != nil {
		return err
	}
	s.logger.Debug("health server stopped")
	return nil
}

// SetReady sets the ready state of the server.
func (s *Server) SetReady(ready bool) {
	if old := s.ready.Swap(ready); old != ready {
		s.logger.Info("readiness changed", "ready", ready)
	}
}

// Registry returns the metrics registry served on /metrics.
func (s *Server) Registry() *Registry { return s.metrics }

// RegisterChecker registers a health checker reported on /livez.
func (s *Server) RegisterChecker(name string, interval time.Duration, fn CheckFunc) error {
	return s.checks.RegisterChecker(name, interval, fn)
}

// ReadyzHandler handles readiness checks.
func (s *Server) ReadyzHandler(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	ready := s.ready.Load()
	code, status := http.StatusOK, healthStatusOK
	if !ready {
		code, status = http.StatusServiceUnavailable, healthStatusFail
	}
	s.respond(w, r, code, map[string]any{
		"status":     status,
		"ready":      ready,
		"uptime_sec": int64(time.Since(s.started).Seconds()),
	})
}

// LivezHandler handles liveness checks.
func (s *Server) LivezHandler(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	checks, anyFail := s.checks.Status()
	code, status := http.StatusOK, healthStatusOK
	if anyFail {
		code, status = http.StatusServiceUnavailable, healthStatusFail
	}
	body := map[string]any{
		"status":     status,
		"healthy":    !anyFail,
		"uptime_sec": int64(time.Since(s.started).Seconds()),
	}
	if checks != nil {
		body["checks"] = checks
	}
	s.respond(w, r, code, body)
}

func allowRead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, code int, body map[string]any) {
	if r.Method == http.MethodHead {
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WarnContext(r.Context(), "encode health response failed", "error", err)
	}
}
