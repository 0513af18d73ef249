// Package metrics holds the Prometheus collectors shared by the API and the
// worker roles.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mediaconv"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	JobsReceived     prometheus.Counter
	JobsDropped      prometheus.Counter
	LostRaces        prometheus.Counter
	Conversions      *prometheus.CounterVec
	ConversionTime   *prometheus.HistogramVec
	ResultsPublished prometheus.Counter
	WaitTimeouts     prometheus.Counter
	Deliveries       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "jobs_received_total",
			Help: "Messages read from the jobs channel.",
		}),
		JobsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "jobs_dropped_total",
			Help: "Messages that could not be decoded into a job.",
		}),
		LostRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "lock_lost_total",
			Help: "Jobs skipped because another worker holds the lock.",
		}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "conversions_total",
			Help: "Finished conversions by kind and status.",
		}, []string{"kind", "status"}),
		ConversionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "conversion_duration_seconds",
			Help:    "Time spent converting a payload.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"kind"}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "results_published_total",
			Help: "Results written to the results channel.",
		}),
		WaitTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "wait_timeouts_total",
			Help: "Synchronous requests that gave up waiting for a result.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "delivery", Name: "callbacks_total",
			Help: "Callback deliveries by final status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.JobsReceived, m.JobsDropped, m.LostRaces, m.Conversions,
		m.ConversionTime, m.ResultsPublished, m.WaitTimeouts, m.Deliveries,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Received() {
	if m != nil {
		m.JobsReceived.Inc()
	}
}

func (m *Metrics) Dropped() {
	if m != nil {
		m.JobsDropped.Inc()
	}
}

func (m *Metrics) LostRace() {
	if m != nil {
		m.LostRaces.Inc()
	}
}

// Converted records a finished conversion. kind is empty when every
// converter failed.
func (m *Metrics) Converted(kind string, ok bool, took time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.Conversions.WithLabelValues(kind, status).Inc()
	m.ConversionTime.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) Published() {
	if m != nil {
		m.ResultsPublished.Inc()
	}
}

func (m *Metrics) WaitTimedOut() {
	if m != nil {
		m.WaitTimeouts.Inc()
	}
}

func (m *Metrics) Delivered(status string) {
	if m != nil {
		m.Deliveries.WithLabelValues(status).Inc()
	}
}
