// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package pipeline

import (
	"context"
	"fmt"

	// database/sql drivers for the SQL sink dialects
	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tomtom215/auditflow/internal/audit"
	"github.com/tomtom215/auditflow/internal/config"
	"github.com/tomtom215/auditflow/internal/logging"
)

// BuildStores opens one store per sink, in order. If any sink fails the
// stores already opened are released and the error is returned.
func BuildStores(sinks []config.SinkConfig) ([]audit.Store, error) {
	stores := make([]audit.Store, 0, len(sinks))
	for i := range sinks {
		s, err := BuildStore(&sinks[i])
		if err != nil {
			destroyStores(context.Background(), stores)
			return nil, fmt.Errorf("sink %s: %w", sinks[i].Name, err)
		}
		stores = append(stores, s)
	}
	return stores, nil
}

// BuildStore opens the store declared by sink, wrapped in a circuit breaker
// when sink.Breaker.Enabled is set.
func BuildStore(sink *config.SinkConfig) (audit.Store, error) {
	var (
		store audit.Store
		err   error
	)

	switch sink.Type {
	case config.SinkTypeFile:
		store = audit.NewFileStore(audit.FileStoreConfig{
			Name:       sink.Name,
			Path:       sink.File.Path,
			MaxSize:    sink.File.MaxSize,
			Rotation:   audit.RotationPolicy(sink.File.Rotation),
			Compress:   sink.File.Compress,
			MaxBackups: sink.File.MaxBackups,
		})
	case config.SinkTypeDatabase:
		store, err = audit.OpenSQLStore(audit.SQLStoreConfig{
			Name:         sink.Name,
			Dialect:      audit.Dialect(sink.Database.Dialect),
			Table:        sink.Database.Table,
			DSN:          sink.Database.DSN,
			MaxOpenConns: sink.Database.MaxOpenConns,
		})
	case config.SinkTypeBadger:
		store, err = audit.OpenBadgerStore(audit.BadgerStoreConfig{
			Name:     sink.Name,
			Dir:      sink.Badger.Dir,
			InMemory: sink.Badger.InMemory,
		})
	case config.SinkTypeMemory:
		store = audit.NewMemoryStore(sink.Name, sink.Memory.MaxEvents)
	default:
		return nil, fmt.Errorf("unsupported sink type %q", sink.Type)
	}
	if err != nil {
		return nil, err
	}

	if sink.Breaker.Enabled {
		store = audit.NewBreakerStore(store, breakerConfig(sink.Breaker))
	}

	logger := logging.WithComponent("pipeline")
	logger.Debug().
		Str("sink", sink.Name).
		Str("type", sink.Type).
		Bool("breaker", sink.Breaker.Enabled).
		Msg("Audit sink opened")
	return store, nil
}

func breakerConfig(c config.BreakerConfig) audit.BreakerConfig {
	bc := audit.DefaultBreakerConfig()
	if c.FailureThreshold > 0 {
		bc.FailureThreshold = c.FailureThreshold
	}
	if c.Timeout > 0 {
		bc.Timeout = c.Timeout
	}
	return bc
}

// destroyStores releases stores that hold resources, logging failures.
func destroyStores(ctx context.Context, stores []audit.Store) {
	for _, s := range stores {
		d, ok := s.(audit.Destroyer)
		if !ok {
			continue
		}
		if err := d.Destroy(ctx); err != nil {
			logger := logging.WithComponent("pipeline")
			logger.Warn().Err(err).Str("sink", s.Name()).Msg("Failed to release audit sink")
		}
	}
}
