package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "webcheck"

// Metrics instruments the pipeline. A nil *Metrics records nothing.
type Metrics struct {
	collected      *prometheus.CounterVec
	collectErrors  *prometheus.CounterVec
	published      prometheus.Counter
	publishSeconds prometheus.Histogram
	consumed       prometheus.Counter
	malformed      prometheus.Counter
	writes         *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		collected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "producer", Name: "records_collected_total",
			Help: "Records produced by collectors.",
		}, []string{"collector"}),
		collectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "producer", Name: "collect_errors_total",
			Help: "Collector calls that failed.",
		}, []string{"collector"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "producer", Name: "records_published_total",
			Help: "Records acknowledged by the bus.",
		}),
		publishSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "producer", Name: "publish_duration_seconds",
			Help:    "Time from publish to acknowledgement.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "consumer", Name: "messages_consumed_total",
			Help: "Messages decoded and queued for writers.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "consumer", Name: "messages_malformed_total",
			Help: "Messages that could not be decoded.",
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "consumer", Name: "writes_total",
			Help: "Writer invocations by outcome.",
		}, []string{"writer", "result"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "queue_depth",
			Help: "Items buffered in an in-process queue.",
		}, []string{"side"}),
	}
	for _, c := range []prometheus.Collector{
		m.collected, m.collectErrors, m.published, m.publishSeconds,
		m.consumed, m.malformed, m.writes, m.queueDepth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordCollect(collector string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.collectErrors.WithLabelValues(collector).Inc()
		return
	}
	m.collected.WithLabelValues(collector).Inc()
}

func (m *Metrics) recordPublish(d time.Duration) {
	if m == nil {
		return
	}
	m.published.Inc()
	m.publishSeconds.Observe(d.Seconds())
}

func (m *Metrics) recordConsumed() {
	if m != nil {
		m.consumed.Inc()
	}
}

func (m *Metrics) recordMalformed() {
	if m != nil {
		m.malformed.Inc()
	}
}

func (m *Metrics) recordWrite(writer, result string) {
	if m != nil {
		m.writes.WithLabelValues(writer, result).Inc()
	}
}

func (m *Metrics) setDepth(side string, n int) {
	if m != nil {
		m.queueDepth.WithLabelValues(side).Set(float64(n))
	}
}
