// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

// Package logging provides the zerolog-based structured logger shared by
// every auditflow component.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once with Init
//   - JSON output for production and console output for development
//   - Request and correlation IDs carried in context.Context
//   - An slog.Handler adapter for libraries that only speak slog
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("store", "file").Msg("Store initialized")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Flush failed")
//
// Components take a child logger once and keep it:
//
//	logger := logging.WithComponent("audit")
//
// # Context IDs
//
// ContextWithRequestID and ContextWithCorrelationID attach IDs that Ctx adds
// to every line. The audit package copies them into the request_id and
// trace_id of each recorded event.
//
// # Thread Safety
//
// All functions are safe for concurrent use. Init may be called again at
// runtime to change level or format.
package logging
