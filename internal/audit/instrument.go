// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"context"
	"time"

	"github.com/tomtom215/auditflow/internal/logging"
)

// TrackSpec describes the event recorded around a tracked action.
type TrackSpec struct {
	EventType  string
	Category   Category
	Severity   Severity
	Operation  string
	Resource   string
	ResourceID string
	UserID     string
	Service    string
	Metadata   map[string]any
}

// Track runs action and records one audit event describing its outcome and
// duration. The action's error is returned unchanged; a failure to record
// the event is logged and never replaces it.
func Track(ctx context.Context, m *Manager, spec TrackSpec, action func(context.Context) error) error {
	start := time.Now()
	err := action(ctx)
	record(ctx, m, &spec, time.Since(start), err)
	return err
}

// TrackValue is Track for actions that return a value.
func TrackValue[T any](ctx context.Context, m *Manager, spec TrackSpec, action func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := action(ctx)
	record(ctx, m, &spec, time.Since(start), err)
	return v, err
}

func record(ctx context.Context, m *Manager, spec *TrackSpec, elapsed time.Duration, actionErr error) {
	if m == nil {
		return
	}

	meta := cloneMap(spec.Metadata)
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	meta["durationMs"] = elapsed.Milliseconds()

	in := EventInput{
		EventType:  spec.EventType,
		Category:   spec.Category,
		Severity:   spec.Severity,
		Operation:  spec.Operation,
		Resource:   spec.Resource,
		ResourceID: spec.ResourceID,
		UserID:     spec.UserID,
		Service:    spec.Service,
		Metadata:   meta,
		Success:    Bool(actionErr == nil),
		RequestID:  logging.RequestIDFromContext(ctx),
		TraceID:    logging.CorrelationIDFromContext(ctx),
	}
	if actionErr != nil {
		in.ErrorMessage = actionErr.Error()
		// failures are at least MEDIUM
		if in.Severity.Rank() < SeverityMedium.Rank() {
			in.Severity = SeverityMedium
		}
	}

	if err := m.Log(ctx, in); err != nil {
		m.logger.Warn().Err(err).
			Str("event_type", spec.EventType).
			Str("operation", spec.Operation).
			Msg("failed to record tracked action")
	}
}

// LogAuthentication records a login attempt.
func (m *Manager) LogAuthentication(ctx context.Context, userID, method string, success bool, reason string) error {
	in := EventInput{
		EventType: "auth.login",
		Category:  CategorySecurity,
		Severity:  SeverityMedium,
		Operation: "authenticate",
		Resource:  "session",
		UserID:    userID,
		Success:   Bool(success),
		Metadata:  map[string]any{"method": method},
		RequestID: logging.RequestIDFromContext(ctx),
	}
	if !success {
		in.EventType = "auth.login_failed"
		in.Severity = SeverityHigh
		in.ErrorMessage = reason
	}
	return m.Log(ctx, in)
}

// LogAuthorization records an access decision on a resource.
func (m *Manager) LogAuthorization(ctx context.Context, userID, resource, action string, allowed bool) error {
	in := EventInput{
		EventType: "authz.granted",
		Category:  CategorySecurity,
		Severity:  SeverityLow,
		Operation: action,
		Resource:  resource,
		UserID:    userID,
		Success:   Bool(allowed),
		RequestID: logging.RequestIDFromContext(ctx),
	}
	if !allowed {
		in.EventType = "authz.denied"
		in.Severity = SeverityHigh
	}
	return m.Log(ctx, in)
}

// LogDataAccess records a read of a data resource.
func (m *Manager) LogDataAccess(ctx context.Context, userID, resource, resourceID string, recordCount int) error {
	return m.Log(ctx, EventInput{
		EventType:  "data.read",
		Category:   CategoryData,
		Severity:   SeverityLow,
		Operation:  "read",
		Resource:   resource,
		ResourceID: resourceID,
		UserID:     userID,
		Metadata:   map[string]any{"recordCount": recordCount},
		RequestID:  logging.RequestIDFromContext(ctx),
	})
}

// LogDataChange records a mutation. before and after are masked like any
// other metadata.
func (m *Manager) LogDataChange(ctx context.Context, userID, resource, resourceID, operation string, before, after map[string]any) error {
	meta := map[string]any{}
	if before != nil {
		meta["before"] = before
	}
	if after != nil {
		meta["after"] = after
	}
	return m.Log(ctx, EventInput{
		EventType:  "data." + operation,
		Category:   CategoryData,
		Severity:   SeverityMedium,
		Operation:  operation,
		Resource:   resource,
		ResourceID: resourceID,
		UserID:     userID,
		Metadata:   meta,
		RequestID:  logging.RequestIDFromContext(ctx),
	})
}

// LogSystemEvent records a lifecycle or maintenance event of a service.
func (m *Manager) LogSystemEvent(ctx context.Context, service, operation string, severity Severity, metadata map[string]any) error {
	return m.Log(ctx, EventInput{
		EventType: "system." + operation,
		Category:  CategorySystem,
		Severity:  severity,
		Operation: operation,
		Resource:  "service",
		Service:   service,
		Metadata:  metadata,
		RequestID: logging.RequestIDFromContext(ctx),
	})
}

// LogSecurityIncident records a detected threat at CRITICAL severity.
func (m *Manager) LogSecurityIncident(ctx context.Context, incidentType, userID, ipAddress, description string) error {
	return m.Log(ctx, EventInput{
		EventType:    "security." + incidentType,
		Category:     CategorySecurity,
		Severity:     SeverityCritical,
		Operation:    "detect",
		Resource:     "security",
		UserID:       userID,
		IPAddress:    ipAddress,
		Success:      Bool(false),
		ErrorMessage: description,
		RequestID:    logging.RequestIDFromContext(ctx),
	})
}
