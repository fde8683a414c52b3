// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

// Package pipeline assembles an audit.Manager from config.AuditConfig.
//
// It maps each declared sink to a store (file, DuckDB or PostgreSQL,
// BadgerDB, memory), optionally wrapped in a circuit breaker, converts the
// policy and alert rules, registers extra masking patterns and runs the
// stores' Initialize hooks.
//
//	m, err := pipeline.New(ctx, cfg.Audit,
//	    audit.WithMetrics(metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
// NewFileManager and NewDatabaseManager cover the single-sink cases.
package pipeline
