// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

// Package validation wraps go-playground/validator v10 for configuration
// and alert rule checks.
//
// Fields are named by their koanf tag, falling back to the json tag and
// then the Go name, so a failure in a nested sink reads:
//
//	audit.sinks[1].type must be one of: file database badger memory
//
// Two custom tags are registered: regexp (the value compiles as a regular
// expression) and listenaddr (the value is a host:port pair with a port).
//
// ValidateStruct returns *StructValidationError, so callers can inspect
// Errors or Fields, or wrap it with %w.
package validation
