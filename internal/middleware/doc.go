// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

/*
Package middleware provides HTTP middleware for the auditd admin endpoint.

All middleware has the chi signature func(http.Handler) http.Handler:

  - RequestID: X-Request-ID propagation plus correlation id and a
    component logger in the request context
  - PrometheusMetrics: request count and latency by chi route pattern
  - Compression: pooled gzip response encoding
  - RateLimitByIP: per-client request cap backed by go-chi/httprate

Stack order used by the admin router:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)

PrometheusMetrics labels by route pattern rather than raw path, so the
series count stays bounded no matter what clients request.
*/
package middleware
