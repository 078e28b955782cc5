package blinkup

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blinkup",
			Subsystem: "coordinator",
			Name:      "attempts_total",
			Help:      "Total number of BlinkUp attempts by outcome",
		},
		[]string{"outcome"},
	)

	attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "blinkup",
			Subsystem: "coordinator",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of BlinkUp attempts from start to terminal state",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~2min
		},
		[]string{"outcome"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blinkup",
			Subsystem: "coordinator",
			Name:      "active_sessions",
			Help:      "Number of BlinkUp sessions in flight (0 or 1)",
		},
	)

	clearTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blinkup",
			Subsystem: "coordinator",
			Name:      "clear_total",
			Help:      "Total number of stored data clears by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		attemptsTotal,
		attemptDuration,
		activeSessions,
		clearTotal,
	)
}

func recordAttempt(outcome Outcome, seconds float64) {
	attemptsTotal.WithLabelValues(string(outcome)).Inc()
	attemptDuration.WithLabelValues(string(outcome)).Observe(seconds)
}

func recordRejected() {
	attemptsTotal.WithLabelValues(string(OutcomeRejected)).Inc()
}

func recordClear(result string) {
	clearTotal.WithLabelValues(result).Inc()
}
