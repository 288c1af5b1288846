package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"eventscout/internal/pkg/config"
)

// Metrics tracks scheduled discovery job execution alongside the
// worker's configuration load state.
type Metrics struct {
	// Config tracks configuration fallbacks and load timestamps.
	Config *config.Metrics

	// JobRunsTotal counts discovery job runs by status
	// (success, degraded, failure).
	JobRunsTotal *prometheus.CounterVec

	// JobDurationSeconds measures end-to-end discovery run duration.
	JobDurationSeconds prometheus.Histogram

	// JobEventsFoundTotal counts events stored across all runs.
	JobEventsFoundTotal prometheus.Counter

	// JobLastSuccessTimestamp is the Unix time of the last run that
	// completed without failure.
	JobLastSuccessTimestamp prometheus.Gauge
}

// NewMetrics registers the worker job metrics on reg. Production code
// passes prometheus.DefaultRegisterer so the metrics appear on the
// worker's /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Config: config.NewMetrics("worker", reg),

		JobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_discovery_job_runs_total",
			Help: "Total number of scheduled discovery job runs by status",
		}, []string{"status"}),

		JobDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_discovery_job_duration_seconds",
			Help:    "Duration of scheduled discovery job runs in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		JobEventsFoundTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_discovery_job_events_found_total",
			Help: "Total number of events stored across all discovery job runs",
		}),

		JobLastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_discovery_job_last_success_timestamp",
			Help: "Unix timestamp of the last discovery job run that did not fail",
		}),
	}
}

// RecordJobRun counts one job run with the given terminal status.
func (m *Metrics) RecordJobRun(status string) {
	m.JobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes one job run's duration in seconds.
func (m *Metrics) RecordJobDuration(seconds float64) {
	m.JobDurationSeconds.Observe(seconds)
}

// RecordEventsFound adds the number of events stored by one run.
func (m *Metrics) RecordEventsFound(count int) {
	m.JobEventsFoundTotal.Add(float64(count))
}

// RecordLastSuccess marks now as the last non-failing run.
func (m *Metrics) RecordLastSuccess() {
	m.JobLastSuccessTimestamp.SetToCurrentTime()
}
