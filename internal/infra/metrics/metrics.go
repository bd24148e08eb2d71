// Package metrics provides Prometheus metrics for DriftWatch — counters,
// gauges, and histograms for predictions, inference logging, validation,
// and drift checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Predictions ────────────────────────────────────────────────────────────

// PredictionLatency tracks prediction request duration in seconds.
var PredictionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "driftwatch",
	Name:      "prediction_latency_seconds",
	Help:      "Prediction request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"model"})

// PredictionsTotal tracks prediction calls by model and status.
var PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "driftwatch",
	Name:      "predictions_total",
	Help:      "Total prediction calls.",
}, []string{"model", "status"})

// ─── Inference Logging ──────────────────────────────────────────────────────

// LogQueueDepth tracks the current depth of the async log queue.
var LogQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "driftwatch",
	Name:      "log_queue_depth",
	Help:      "Entries buffered in the inference log queue.",
})

// LogDropsTotal tracks inference log entries dropped because the queue
// was full or the sink failed.
var LogDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "driftwatch",
	Name:      "log_drops_total",
	Help:      "Inference log entries dropped (queue full or sink failure).",
})

// ─── Validation ─────────────────────────────────────────────────────────────

// ValidationsTotal tracks validator verdicts.
var ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "driftwatch",
	Name:      "validations_total",
	Help:      "Total artifact validations by verdict.",
}, []string{"verdict"})

// ─── Drift ──────────────────────────────────────────────────────────────────

// DriftChecksTotal tracks drift checks by outcome.
var DriftChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "driftwatch",
	Name:      "drift_checks_total",
	Help:      "Total drift checks by outcome (report, no_data, error).",
}, []string{"outcome"})

// DriftScore tracks the latest drift score per model and feature.
var DriftScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "driftwatch",
	Name:      "drift_score",
	Help:      "Latest drift score per model and feature.",
}, []string{"model", "feature"})

// ActiveAlerts tracks currently active drift alerts by severity.
var ActiveAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "driftwatch",
	Name:      "active_alerts",
	Help:      "Active drift alerts by severity.",
}, []string{"severity"})

// BatchDuration tracks the duration of scheduled check-all batches.
var BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "driftwatch",
	Name:      "batch_duration_seconds",
	Help:      "Duration of drift check fan-out batches.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
})
