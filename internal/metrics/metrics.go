package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_runs_total",
			Help: "Total number of completed evaluation runs",
		},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricewatch_run_duration_seconds",
			Help:    "Wall time of one evaluation run in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricewatch_last_run_timestamp_seconds",
			Help: "Unix time at which the last run finished",
		},
	)

	// Instrument metrics
	InstrumentsEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_instruments_evaluated_total",
			Help: "Total number of instrument evaluations",
		},
		[]string{"kind", "classification"},
	)

	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_failures_total",
			Help: "Total number of failed value fetches",
		},
		[]string{"kind"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_notifications_total",
			Help: "Total number of notification attempts",
		},
		[]string{"outcome"}, // outcome: notified, notify_failed
	)
)
