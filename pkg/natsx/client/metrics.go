package client

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts connection events. A nil *Metrics records nothing.
type Metrics struct {
	connects    prometheus.Counter
	disconnects prometheus.Counter
	reconnects  prometheus.Counter
	errors      prometheus.Counter
}

// NewMetrics registers connection counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webcheck", Subsystem: "nats", Name: name, Help: help,
		})
	}
	m := &Metrics{
		connects:    counter("connects_total", "Successful initial connections."),
		disconnects: counter("disconnects_total", "Connection losses."),
		reconnects:  counter("reconnects_total", "Successful reconnections."),
		errors:      counter("async_errors_total", "Asynchronous errors reported by the server."),
	}
	for _, c := range []prometheus.Collector{m.connects, m.disconnects, m.reconnects, m.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) connected() {
	if m != nil {
		m.connects.Inc()
	}
}

func (m *Metrics) disconnected() {
	if m != nil {
		m.disconnects.Inc()
	}
}

func (m *Metrics) reconnected() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) asyncError() {
	if m != nil {
		m.errors.Inc()
	}
}
