// Package metrics exposes the mirror's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "requestmirror"

// Poll outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDropped = "dropped"
)

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	PollInterval       *prometheus.GaugeVec
	PollLatency        *prometheus.HistogramVec
	Polls              *prometheus.CounterVec
	RequestsSeen       *prometheus.CounterVec
	AvgRequestInterval *prometheus.GaugeVec

	QueueSize    prometheus.Gauge
	Tasks        *prometheus.CounterVec
	SkippedTicks prometheus.Counter
	SourceRPC    prometheus.Counter
	MirrorRPC    *prometheus.CounterVec
}

// New creates and registers the collectors. Go runtime and process collectors
// are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PollInterval: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_interval_seconds",
			Help:      "Current source poll interval per track.",
		}, []string{"track"}),
		PollLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_latency_seconds",
			Help:      "Duration of poll tasks per track and kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"track", "kind"}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll tasks executed per track, kind and outcome.",
		}, []string{"track", "kind", "outcome"}),
		RequestsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_seen_total",
			Help:      "Distinct requests observed on the source per track.",
		}, []string{"track"}),
		AvgRequestInterval: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "avg_request_interval_seconds",
			Help:      "Mean gap between recent request changes per track.",
		}, []string{"track"}),
		QueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_size",
			Help:      "Pending tasks in the queue.",
		}),
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks executed per kind and outcome.",
		}, []string{"kind", "outcome"}),
		SkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_ticks_total",
			Help:      "Worker ticks skipped because an iteration was still running.",
		}),
		SourceRPC: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rpc_total",
			Help:      "Calls made to the source API.",
		}),
		MirrorRPC: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_rpc_total",
			Help:      "Calls made to the mirror API, split by reads and writes.",
		}, []string{"write"}),
	}

	m.registry.MustRegister(
		m.PollInterval,
		m.PollLatency,
		m.Polls,
		m.RequestsSeen,
		m.AvgRequestInterval,
		m.QueueSize,
		m.Tasks,
		m.SkippedTicks,
		m.SourceRPC,
		m.MirrorRPC,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePoll records a finished poll task.
func (m *Metrics) ObservePoll(track, kind, outcome string, took time.Duration) {
	m.PollLatency.WithLabelValues(track, kind).Observe(took.Seconds())
	m.Polls.WithLabelValues(track, kind, outcome).Inc()
}

// ObserveMirrorCall counts one mirror API call.
func (m *Metrics) ObserveMirrorCall(write bool) {
	if write {
		m.MirrorRPC.WithLabelValues("true").Inc()
		return
	}
	m.MirrorRPC.WithLabelValues("false").Inc()
}
