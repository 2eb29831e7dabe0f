package health

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// HTTPMaxRequestsInFlight limits concurrent scrapes.
	HTTPMaxRequestsInFlight = 10
	// HTTPScrapeTimeout bounds a single scrape.
	HTTPScrapeTimeout = 5 * time.Second
)

// Registry owns the process metrics registry. Components register their own
// collectors through Registerer; the health server exposes them on /metrics.
type Registry struct {
	reg       *prometheus.Registry
	namespace string

	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the Go and process collectors
// and the HTTP instrumentation of the health endpoints.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &Registry{reg: prometheus.NewRegistry(), namespace: namespace}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "http_in_flight_requests",
		Help: "Current number of in-flight HTTP requests.",
	})
	r.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total",
		Help: "Total number of HTTP requests handled, labeled by code and method.",
	}, []string{"handler", "code", "method"})
	r.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler", "method", "code"})
	r.reg.MustRegister(r.inFlight, r.requests, r.duration)
	return r
}

// Registerer is where components register their collectors.
func (r *Registry) Registerer() prometheus.Registerer { return r.reg }

// Gatherer exposes the registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		EnableOpenMetrics:   true,
		MaxRequestsInFlight: HTTPMaxRequestsInFlight,
		Timeout:             HTTPScrapeTimeout,
	})
}

// Instrument wraps h with request counters and latency histograms labelled
// by handler name.
func (r *Registry) Instrument(name string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": name}
	return promhttp.InstrumentHandlerInFlight(r.inFlight,
		promhttp.InstrumentHandlerDuration(r.duration.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(r.requests.MustCurryWith(labels), h)))
}
