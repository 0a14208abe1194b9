package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"static-web-server/internal/worker"
)

const namespace = "static_web_server"

// PoolStats is the part of *worker.Pool the collectors read.
type PoolStats interface {
	Stats() worker.Stats
}

// NewRegistry builds a registry exposing m and pool alongside the Go
// runtime and process collectors. Values are read at scrape time.
func NewRegistry(m *Metrics, pool PoolStats) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	poolGauge := func(name, help string, value func(worker.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(pool.Stats()) })
	}

	reg.MustRegister(
		poolGauge("workers", "Configured number of workers.",
			func(s worker.Stats) float64 { return float64(s.Size) }),
		poolGauge("live_workers", "Workers whose goroutine has not exited.",
			func(s worker.Stats) float64 { return float64(s.Live) }),
		poolGauge("busy_workers", "Workers currently executing a job.",
			func(s worker.Stats) float64 { return float64(s.Busy) }),
		poolGauge("queued_jobs", "Jobs waiting for a worker.",
			func(s worker.Stats) float64 { return float64(s.Queued) }),
		poolGauge("faulted_workers", "Workers lost to a panicking job.",
			func(s worker.Stats) float64 { return float64(s.Faults) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_executed_total",
			Help:      "Jobs that ran to completion.",
		}, func() float64 { return float64(pool.Stats().Executed) }),
	)

	if m == nil {
		return reg
	}

	responses := func(class string, value func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "responses_total",
			Help:        "Responses written, by status class.",
			ConstLabels: prometheus.Labels{"class": class},
		}, func() float64 { return float64(value()) })
	}

	reg.MustRegister(
		responses("2xx", m.SuccessResponses),
		responses("4xx", m.ClientErrors),
		responses("5xx", m.ServerErrors),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Responses that failed while being written.",
		}, func() float64 { return float64(m.WriteFailures()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_connections_total",
			Help:      "Connections closed because the pool no longer accepted work.",
		}, func() float64 { return float64(m.Rejected()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to clients.",
		}, func() float64 { return float64(m.BytesSent()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "p99_latency_seconds",
			Help:      "Sampled p99 connection handling latency.",
		}, func() float64 { return m.P99Latency().Seconds() }),
	)

	return reg
}
