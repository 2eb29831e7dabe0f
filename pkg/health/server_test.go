package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	if c.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", c.Addr, DefaultAddr)
	}
	if c.MetricsNamespace != DefaultNamespace {
		t.Errorf("MetricsNamespace = %q, want %q", c.MetricsNamespace, DefaultNamespace)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled skips addr", Config{Enabled: false, Addr: "bogus"}, false},
		{"bad addr", Config{Enabled: true, Addr: "bogus"}, true},
		{"any port", Config{Enabled: true, Addr: ":0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewServerRejectsBadAddr(t *testing.T) {
	if _, err := NewServer(Config{Addr: ":99999"}, nil, nil); err == nil {
		t.Error("NewServer() accepted port 99999")
	}
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	if rec := serve(h, http.MethodGet, ReadyzPath); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: status = %d, want 503", rec.Code)
	}

	s.SetReady(true)
	rec := serve(h, http.MethodGet, ReadyzPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ready"] != true || body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}

	rec = serve(h, http.MethodHead, ReadyzPath)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD: status = %d, body %q", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodPost, ReadyzPath)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, HEAD" {
		t.Errorf("Allow = %q", got)
	}
}

func TestLivezReportsCheckers(t *testing.T) {
	s := newTestServer(t)
	err := s.RegisterChecker("nats-connection", time.Second, func(context.Context) error {
		return errors.New("not connected")
	})
	if err != nil {
		t.Fatalf("RegisterChecker() error = %v", err)
	}

	waitFor(t, func() bool {
		rec := serve(s.Handler(), http.MethodGet, LivezPath)
		return rec.Code == http.StatusServiceUnavailable &&
			strings.Contains(rec.Body.String(), `"nats-connection":"fail"`)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "webcheck_test_total", Help: "test"})
	if err := s.Registry().Registerer().Register(c); err != nil {
		t.Fatal(err)
	}
	c.Add(3)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + MetricsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{"webcheck_test_total 3", "go_goroutines"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics output is missing %q", want)
		}
	}
}

func TestStartFailsOnBusyPort(t *testing.T) {
	first := newTestServer(t)
	if err := first.Start(); err != nil {
		t.Fatal(err)
	}

	second, err := NewServer(Config{Enabled: true, Addr: first.Addr()}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Start(); err == nil {
		t.Error("Start() on a busy port succeeded")
	}
}
