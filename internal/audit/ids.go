// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// generateEventID returns an id of the form audit_<epochMillis>_<random>.
func generateEventID(now time.Time) string {
	return generateID("audit", now)
}

// generateAlertID returns an id of the form alert_<epochMillis>_<random>.
func generateAlertID(now time.Time) string {
	return generateID("alert", now)
}

func generateID(prefix string, now time.Time) string {
	// 12 hex chars of a v4 UUID carry 48 random bits
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return prefix + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + random
}
