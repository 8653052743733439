package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the archival pipeline.
type Metrics struct {
	WarningsSent   *prometheus.CounterVec
	RecordsDeleted *prometheus.CounterVec
	SweepErrors    *prometheus.CounterVec
	ArchivalRuns   prometheus.Counter
	RunDuration    prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		WarningsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verikeep_archival_warnings_sent_total",
			Help: "Deletion warnings sent, per retention module",
		}, []string{"module"}),
		RecordsDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verikeep_archival_records_deleted_total",
			Help: "Records hard-deleted by the archival sweep, per retention module",
		}, []string{"module"}),
		SweepErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verikeep_archival_sweep_errors_total",
			Help: "Per-record failures tolerated during a sweep, per retention module",
		}, []string{"module"}),
		ArchivalRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verikeep_archival_runs_total",
			Help: "Completed archival runs (both phases, all modules)",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verikeep_archival_run_duration_seconds",
			Help:    "Wall-clock duration of a full archival run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// ObserveRun records one completed run.
func (m *Metrics) ObserveRun(d time.Duration) {
	m.ArchivalRuns.Inc()
	m.RunDuration.Observe(d.Seconds())
}
