// Package metrics provides the Prometheus collectors shared by the worker,
// the downloader and the import pipeline
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every collector name
const DefaultNamespace = "gridintake"

// Metrics holds the collectors; a nil *Metrics is a valid no-op sink
type Metrics struct {
	gatherer prometheus.Gatherer

	// Queue
	JobsLeased   *prometheus.CounterVec
	JobsFinished *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
	JobsReaped   prometheus.Counter
	LeaseErrors  prometheus.Counter

	// Download
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram
	Downloads        *prometheus.CounterVec

	// Import
	ImportRows    *prometheus.CounterVec
	ChunkDuration prometheus.Histogram
	RunsFinished  *prometheus.CounterVec
}

// New registers the collectors on reg under namespace
// Passing a fresh prometheus.NewRegistry keeps tests isolated
func New(reg *prometheus.Registry, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		JobsLeased: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_leased_total",
			Help:      "Jobs claimed from the queue",
		}, []string{"kind"}),
		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs reported back to the queue by outcome (done, retry, failed)",
		}, []string{"kind", "outcome"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from lease to completion report",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
		}, []string{"kind"}),
		JobsReaped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_reaped_total",
			Help:      "Running jobs returned to the queue after their lease expired",
		}),
		LeaseErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_errors_total",
			Help:      "Failed lease attempts",
		}),
		DownloadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written to staging files",
		}),
		DownloadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time to fetch and extract one dataset",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		Downloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download attempts by result (cached, done, error)",
		}, []string{"result"}),
		ImportRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Rows seen by the import pipeline per table and stage",
		}, []string{"table", "stage"}),
		ChunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_chunk_duration_seconds",
			Help:      "Time to transform and load one chunk",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
		RunsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_runs_total",
			Help:      "Import runs by terminal status",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// JobLeased counts a claimed job
func (m *Metrics) JobLeased(kind string) {
	if m == nil {
		return
	}
	m.JobsLeased.WithLabelValues(kind).Inc()
}

// JobFinished counts a job outcome and observes its duration
func (m *Metrics) JobFinished(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(kind, outcome).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// Reaped counts jobs returned by the lease reaper
func (m *Metrics) Reaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JobsReaped.Add(float64(n))
}

// LeaseFailed counts a lease error
func (m *Metrics) LeaseFailed() {
	if m == nil {
		return
	}
	m.LeaseErrors.Inc()
}

// Downloaded counts transferred bytes
func (m *Metrics) Downloaded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DownloadBytes.Add(float64(n))
}

// DownloadDone records a download result
func (m *Metrics) DownloadDone(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(result).Inc()
	if result != "cached" {
		m.DownloadDuration.Observe(took.Seconds())
	}
}

// Rows adds n rows to a table/stage pair
func (m *Metrics) Rows(table, stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImportRows.WithLabelValues(table, stage).Add(float64(n))
}

// ChunkDone observes a chunk's transform+load time
func (m *Metrics) ChunkDone(took time.Duration) {
	if m == nil {
		return
	}
	m.ChunkDuration.Observe(took.Seconds())
}

// RunFinished counts a terminal run status
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.RunsFinished.WithLabelValues(status).Inc()
}
