// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/auditflow/internal/audit"
	"github.com/tomtom215/auditflow/internal/logging"
	"github.com/tomtom215/auditflow/internal/metrics"
)

// RetentionApplier is satisfied by *audit.Manager.
type RetentionApplier interface {
	ApplyRetention(ctx context.Context) (audit.PurgeResult, error)
}

// RetentionService runs retention sweeps on a fixed interval.
//
// A sweep runs immediately on start, then once per interval. Sweep failures
// are logged and retried on the next tick; only a destroyed manager stops
// the service for good.
//
//	svc := services.NewRetentionService(manager, time.Hour)
//	tree.AddStorageService(svc)
type RetentionService struct {
	applier  RetentionApplier
	interval time.Duration
	name     string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRetentionService creates a retention sweeper. A non-positive interval
// defaults to one hour.
func NewRetentionService(applier RetentionApplier, interval time.Duration) *RetentionService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionService{
		applier:  applier,
		interval: interval,
		name:     "retention-sweeper",
		logger:   logging.WithComponent("retention"),
		now:      time.Now,
	}
}

// Serve implements suture.Service.
func (s *RetentionService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.sweep(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sweep runs one retention pass. It returns an error only when the service
// should stop.
func (s *RetentionService) sweep(ctx context.Context) error {
	start := s.now()
	result, err := s.applier.ApplyRetention(ctx)
	if err != nil {
		if errors.Is(err, audit.ErrManagerDestroyed) {
			s.logger.Info().Msg("Audit manager destroyed, stopping retention sweeps")
			return suture.ErrDoNotRestart
		}
		s.logger.Warn().Err(err).Msg("Retention sweep failed")
		return nil
	}

	metrics.RecordRetentionSweep(result.Deleted, start)
	level := zerolog.InfoLevel
	if len(result.Failed) > 0 {
		level = zerolog.WarnLevel
	}
	s.logger.WithLevel(level).
		Strs("failed_stores", result.Failed).
		Int64("deleted", result.Total()).
		Dur("duration", s.now().Sub(start)).
		Msg("Retention sweep completed")
	return nil
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *RetentionService) String() string {
	return s.name
}
