// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

/*
Package api serves the auditd admin endpoint.

Routes:

	GET /healthz  store health and pipeline counters; 503 when degraded
	GET /livez    process liveness, no dependency checks
	GET /metrics  Prometheus exposition

Every route runs behind the middleware stack from internal/middleware.
JSON bodies share the APIResponse envelope:

	{"status":"healthy","data":{...},"metadata":{"timestamp":"..."}}
*/
package api
