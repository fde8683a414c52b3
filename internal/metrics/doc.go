// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

/*
Package metrics provides Prometheus instrumentation for the audit pipeline.

Two layers are exposed:

  - Collector / Counter: the small interface an audit Manager uses for its
    event counters (audit_events_queued, audit_events_processed,
    audit_events_failed, audit_alerts_triggered). PrometheusCollector backs it
    with registered prometheus counters; Noop discards everything.
  - Package-level promauto metrics for infrastructure: store write latency,
    circuit breaker state, retention sweeps, ingest and the admin endpoint.

# Usage Example

	reg := prometheus.NewRegistry()
	mgr := audit.NewManager(audit.WithMetrics(metrics.NewPrometheusCollector(reg)))

	http.Handle("/metrics", promhttp.Handler())
*/
package metrics
