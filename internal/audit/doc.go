// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

// Package audit provides an embeddable audit event pipeline for compliance
// and forensic analysis.
//
// A Manager accepts partial events, enriches them with defaults, filters them
// against the current Policy, masks sensitive metadata, evaluates real-time
// alert rules and fans batches out to every registered Store.
//
// # Overview
//
// The pipeline provides:
//   - Policy filtering by category and minimum severity
//   - Batched asynchronous persistence with a periodic flush scheduler
//   - Multi-store fan-out with per-store failure isolation
//   - Field-name driven masking of sensitive metadata
//   - Alert rules with thresholds, time windows and suppression
//   - JSON, CSV, XML and CEF export
//   - Retention purges across all stores
//
// # Architecture
//
//	Manager.Log() -> enrich -> policy filter -> mask -> alerts -> queue
//	                                                                |
//	             batch size reached / scheduler tick / Flush() <----+
//	                                  |
//	               +------------------+------------------+
//	               v                  v                  v
//	          MemoryStore         FileStore         SQLStore ...
//
// Each flush writes the same batch to every store concurrently. A store that
// fails or panics is logged and counted; the remaining stores still receive
// the batch and Flush never returns the failure to the caller.
//
// Reads (Query, Count, Export) are served by the first registered store only.
//
// # Stores
//
//   - MemoryStore: bounded in-process slice, for tests and development
//   - FileStore: JSON lines with size or calendar rotation and gzip backups
//   - SQLStore: DuckDB or PostgreSQL through database/sql
//   - BadgerStore: embedded key-value store with time-ordered keys
//   - BreakerStore: circuit breaker wrapper around any other store
//
// Stores needing setup or teardown implement Initializer and Destroyer;
// Manager.Initialize and Manager.Destroy call them.
//
// # Usage
//
//	store := audit.NewMemoryStore("memory", 0)
//	m, err := audit.NewManager(audit.WithStores(store))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	err = m.Log(ctx, audit.EventInput{
//	    EventType: "user.login",
//	    Category:  audit.CategorySecurity,
//	    Severity:  audit.SeverityMedium,
//	    UserID:    "alice",
//	})
//
// # Instrumentation
//
// Track and TrackValue wrap a fallible action and record one event with its
// duration and outcome:
//
//	err := audit.Track(ctx, m, audit.TrackSpec{EventType: "order.create"}, createOrder)
//
// # Thread Safety
//
// Manager and every store in this package are safe for concurrent use.
package audit
