// Package slo publishes service level objective gauges for the upstream
// call layer. The worker refreshes them periodically from the resilience
// manager's analytics window so dashboards can alert on target violations
// without re-deriving ratios from raw counters.
package slo

import (
	"eventscout/internal/resilience/analytics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for upstream calls made through the resilience layer.
const (
	// AttemptSuccessSLO defines the target ratio of attempts that succeed,
	// retries included (0.95 = at most 1 in 20 attempts may fail).
	AttemptSuccessSLO = 0.95

	// AttemptsPerCallSLO defines the target average number of attempts a
	// completed call consumes. Values near 1.0 mean retries are rare.
	AttemptsPerCallSLO = 1.5

	// AttemptLatencySLO defines the target average attempt latency in
	// seconds across all upstream services.
	AttemptLatencySLO = 2.0
)

// SLO tracking gauges
// These are refreshed periodically (e.g., every minute) from the analytics
// window to track whether upstream reliability is meeting its targets.
var (
	// SLOAttemptSuccess tracks the current attempt success ratio (0-1)
	SLOAttemptSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_attempt_success_ratio",
			Help: "Current upstream attempt success ratio (0-1), target: 0.95",
		},
	)

	// SLOAttemptsPerCall tracks the average attempts per completed call
	SLOAttemptsPerCall = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_attempts_per_call",
			Help: "Average attempts per completed call, target: <= 1.5",
		},
	)

	// SLOAttemptLatency tracks the average attempt latency in seconds
	SLOAttemptLatency = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_attempt_latency_seconds",
			Help: "Average upstream attempt latency in seconds, target: <= 2.0",
		},
	)

	// SLOWindowAttempts exposes the sample size behind the ratios so
	// alerts can ignore windows that are too small to be meaningful.
	SLOWindowAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_window_attempts",
			Help: "Number of attempts in the analytics window backing the SLO gauges",
		},
	)
)

// UpdateFromSnapshot publishes the SLO gauges from an analytics snapshot.
// Ratio gauges keep their previous values when the window is empty.
func UpdateFromSnapshot(snap analytics.Snapshot) {
	SLOWindowAttempts.Set(float64(snap.TotalAttempts))
	if snap.TotalAttempts == 0 {
		return
	}
	SLOAttemptSuccess.Set(snap.SuccessRate)
	SLOAttemptLatency.Set(snap.AvgLatency.Seconds())
	if snap.CompletedCalls > 0 {
		SLOAttemptsPerCall.Set(snap.AvgAttemptsPerCall)
	}
}

// UpdateAttemptSuccess updates the attempt success gauge directly.
// Prefer UpdateFromSnapshot; this exists for callers that compute the
// ratio themselves.
func UpdateAttemptSuccess(ratio float64) {
	SLOAttemptSuccess.Set(ratio)
}
