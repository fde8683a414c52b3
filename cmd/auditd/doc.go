// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

// Command auditd runs the audit pipeline as a standalone daemon.
//
// # Startup
//
//  1. Configuration: defaults, then YAML (CONFIG_PATH or auditflow.yaml), then env
//  2. Logging: zerolog configured from the logging section
//  3. Pipeline: audit manager with every configured sink and alert rule
//  4. Supervisor tree: retention sweeper, NDJSON ingest, admin endpoint
//
// # Ingest
//
// With ingest enabled, auditd reads one JSON event per line from stdin or
// a file and records each through the non-blocking path:
//
//	AUDITFLOW_INGEST__ENABLED=true ./auditd < events.ndjson
//
// # Admin Endpoint
//
// Served on server.addr (default :9464):
//
//	GET /healthz   store health and pipeline counters
//	GET /livez     liveness
//	GET /metrics   Prometheus metrics
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the supervisor tree. Once every service has
// exited the manager is destroyed: the queue is flushed to every sink and
// the sinks are closed, bounded by supervisor.shutdown_timeout.
package main
