// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import "errors"

var (
	// ErrManagerDestroyed is returned by every write operation after Destroy.
	ErrManagerDestroyed = errors.New("audit manager destroyed")

	// ErrNoStores is returned by read operations when no store is registered.
	ErrNoStores = errors.New("no stores available")

	// ErrAlertNotFound is returned when acknowledging an unknown alert id.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidPolicy wraps policy validation failures.
	ErrInvalidPolicy = errors.New("invalid audit policy")

	// ErrInvalidAlertRule wraps alert rule validation failures.
	ErrInvalidAlertRule = errors.New("invalid alert rule")

	// ErrUnsupportedFormat is returned by Export for unknown formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrStoreClosed is returned by stores used after Destroy.
	ErrStoreClosed = errors.New("store closed")
)
