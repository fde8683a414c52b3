// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-level instrumentation for the pipeline's infrastructure:
// - Store write latency and failures
// - Circuit breaker state
// - Retention sweeps
// - NDJSON ingest
// - HTTP admin endpoint
//
// Per-manager event counters go through the Collector interface instead.

var (
	// Store Metrics
	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_store_write_duration_seconds",
			Help:    "Duration of audit store batch writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store"},
	)

	StoreWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_store_write_errors_total",
			Help: "Total number of failed audit store batch writes",
		},
		[]string{"store"},
	)

	StoreBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_store_batch_size",
			Help:    "Number of events per store write",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"store"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Events waiting for the next flush",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audit_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Retention Metrics
	RetentionPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_retention_purged_total",
			Help: "Events removed by retention sweeps",
		},
		[]string{"store"},
	)

	RetentionLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_retention_last_run_timestamp",
			Help: "Unix timestamp of the last retention sweep",
		},
	)

	// Ingest Metrics
	IngestLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_ingest_lines_total",
			Help: "NDJSON lines read by the ingest service",
		},
		[]string{"result"}, // "accepted", "rejected", "filtered"
	)

	// HTTP Metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_http_requests_total",
			Help: "Total HTTP requests served by the admin endpoint",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_http_request_duration_seconds",
			Help:    "Admin endpoint request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "path"},
	)
)

// RecordStoreWrite records one batch write against a store.
func RecordStoreWrite(store string, batchSize int, duration time.Duration, err error) {
	StoreWriteDuration.WithLabelValues(store).Observe(duration.Seconds())
	StoreBatchSize.WithLabelValues(store).Observe(float64(batchSize))
	if err != nil {
		StoreWriteErrors.WithLabelValues(store).Inc()
	}
}

// SetQueueDepth publishes the current queue length.
func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

// RecordCircuitBreakerTransition records a state change. States are the
// breaker's string names ("closed", "half-open", "open").
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordRetentionSweep records the outcome of one retention pass.
func RecordRetentionSweep(purged map[string]int64, at time.Time) {
	for store, n := range purged {
		RetentionPurged.WithLabelValues(store).Add(float64(n))
	}
	RetentionLastRun.Set(float64(at.Unix()))
}

// RecordIngestLine counts one NDJSON line by result.
func RecordIngestLine(result string) {
	IngestLines.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one admin endpoint request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
