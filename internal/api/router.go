// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/auditflow/internal/logging"
	"github.com/tomtom215/auditflow/internal/middleware"
)

// RouterConfig tunes the admin router.
type RouterConfig struct {
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	// HealthRateLimit caps /healthz requests per client IP per minute,
	// since every call probes the stores. Zero disables the cap.
	HealthRateLimit int
}

// NewRouter builds the admin handler.
func NewRouter(pipeline Pipeline, cfg RouterConfig) http.Handler {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := NewHandler(pipeline)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compression)
		r.With(middleware.RateLimitByIP(cfg.HealthRateLimit, time.Minute)).Get("/healthz", h.Health)
		r.Get("/livez", h.Live)
	})

	// promhttp negotiates its own compression.
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	}))

	return r
}

// promErrorLogger routes promhttp gathering errors to the global logger.
type promErrorLogger struct{}

func (promErrorLogger) Println(v ...interface{}) {
	logging.Error().Str("component", "metrics").Msg(fmt.Sprint(v...))
}
