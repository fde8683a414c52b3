// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/auditflow/internal/logging"
	"github.com/tomtom215/auditflow/internal/metrics"
)

// BreakerConfig tunes the circuit breaker wrapped around a store's writes.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failed writes that opens the breaker.
	FailureThreshold uint32
	// MaxRequests is the number of trial writes allowed while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counts; zero never resets.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the breaker settings used by the pipeline.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
	}
}

// BreakerStore guards a store's writes with a circuit breaker so a sink that
// keeps failing is skipped quickly during flushes. Reads pass through.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerStore wraps inner. Lifecycle hooks of inner remain reachable.
func NewBreakerStore(inner Store, cfg BreakerConfig) *BreakerStore {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	name := inner.Name()
	logger := logging.WithComponent("audit").With().Str("store", name).Logger()

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
			logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("audit store circuit breaker state changed")
		},
	}

	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Store writes through the breaker. While open it fails with
// gobreaker.ErrOpenState without touching the inner store.
func (b *BreakerStore) Store(ctx context.Context, events []Event) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Store(ctx, events)
	})
	return err
}

// Name returns the inner store's name.
func (b *BreakerStore) Name() string {
	return b.inner.Name()
}

// Query reads from the inner store.
func (b *BreakerStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return b.inner.Query(ctx, filter)
}

// Count reads from the inner store.
func (b *BreakerStore) Count(ctx context.Context, filter Filter) (int64, error) {
	return b.inner.Count(ctx, filter)
}

// Export reads from the inner store.
func (b *BreakerStore) Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error) {
	return b.inner.Export(ctx, filter, format)
}

// Purge forwards to the inner store.
func (b *BreakerStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	return b.inner.Purge(ctx, before)
}

// HealthCheck reports unhealthy while the breaker is open.
func (b *BreakerStore) HealthCheck(ctx context.Context) (bool, error) {
	if b.cb.State() == gobreaker.StateOpen {
		return false, gobreaker.ErrOpenState
	}
	return b.inner.HealthCheck(ctx)
}

// State returns the breaker state name: closed, half-open or open.
func (b *BreakerStore) State() string {
	return b.cb.State().String()
}

// Unwrap returns the guarded store.
func (b *BreakerStore) Unwrap() Store {
	return b.inner
}

// Initialize forwards to the inner store's hook when present.
func (b *BreakerStore) Initialize(ctx context.Context) error {
	if hook, ok := b.inner.(Initializer); ok {
		return hook.Initialize(ctx)
	}
	return nil
}

// Destroy forwards to the inner store's hook when present.
func (b *BreakerStore) Destroy(ctx context.Context) error {
	if d, ok := b.inner.(Destroyer); ok {
		return d.Destroy(ctx)
	}
	return nil
}
