// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/auditflow/internal/audit"
	"github.com/tomtom215/auditflow/internal/logging"
)

// defaultHealthTimeout bounds a /healthz store probe.
const defaultHealthTimeout = 5 * time.Second

// Pipeline is the read-only view of the audit manager the endpoint needs.
// Satisfied by *audit.Manager.
type Pipeline interface {
	HealthCheck(ctx context.Context) map[string]bool
	Stats() audit.ManagerStats
}

// HealthStatus is the /healthz payload.
type HealthStatus struct {
	Stores        map[string]bool    `json:"stores"`
	Stats         audit.ManagerStats `json:"stats"`
	UptimeSeconds float64            `json:"uptime_seconds"`
}

// Handler serves the admin routes.
type Handler struct {
	pipeline      Pipeline
	startTime     time.Time
	healthTimeout time.Duration
	now           func() time.Time
}

// NewHandler creates a handler over pipeline.
func NewHandler(pipeline Pipeline) *Handler {
	return &Handler{
		pipeline:      pipeline,
		startTime:     time.Now(),
		healthTimeout: defaultHealthTimeout,
		now:           time.Now,
	}
}

// Health probes every store. It answers 503 when any store is unhealthy,
// when no store is registered, or when the manager has been destroyed.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
	defer cancel()

	start := h.now()
	stores := h.pipeline.HealthCheck(ctx)
	stats := h.pipeline.Stats()

	healthy := len(stores) > 0 && !stats.Destroyed
	for _, ok := range stores {
		healthy = healthy && ok
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
		logging.Ctx(r.Context()).Warn().
			Interface("stores", stores).
			Bool("destroyed", stats.Destroyed).
			Msg("Health check degraded")
	}

	respondJSON(w, code, &APIResponse{
		Status: status,
		Data: HealthStatus{
			Stores:        stores,
			Stats:         stats,
			UptimeSeconds: h.now().Sub(h.startTime).Seconds(),
		},
		Metadata: Metadata{
			Timestamp:   h.now().UTC(),
			QueryTimeMS: h.now().Sub(start).Milliseconds(),
		},
	})
}

// Live reports that the process is serving, without probing stores.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "alive",
		Data: map[string]interface{}{
			"uptime_seconds": h.now().Sub(h.startTime).Seconds(),
		},
		Metadata: Metadata{Timestamp: h.now().UTC()},
	})
}

// NotFound answers unknown routes with the JSON error envelope.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}
