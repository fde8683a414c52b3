// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestBreakerStore_OpensAfterFailures(t *testing.T) {
	inner := newFailingStore("flaky")
	b := NewBreakerStore(inner, BreakerConfig{FailureThreshold: 2, MaxRequests: 1, Timeout: time.Hour})
	ctx := context.Background()
	batch := []Event{testEvent("x", time.Now())}

	for i := 0; i < 2; i++ {
		if err := b.Store(ctx, batch); err == nil {
			t.Fatalf("write %d succeeded", i)
		}
	}
	if b.State() != "open" {
		t.Fatalf("State() = %s, want open", b.State())
	}

	err := b.Store(ctx, batch)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Store() error = %v, want ErrOpenState", err)
	}
	if inner.writes.Load() != 2 {
		t.Errorf("inner writes = %d, want 2", inner.writes.Load())
	}
	if ok, _ := b.HealthCheck(ctx); ok {
		t.Error("HealthCheck() = true while open")
	}
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	inner := NewMemoryStore("mem", 0)
	b := NewBreakerStore(inner, DefaultBreakerConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	if b.Name() != "mem" || b.Unwrap() != Store(inner) {
		t.Fatalf("wrapper identity wrong: %s", b.Name())
	}
	if err := b.Store(ctx, []Event{testEvent("a", now.Add(-48*time.Hour)), testEvent("b", now)}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if n, _ := b.Count(ctx, Filter{}); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
	if got, _ := b.Query(ctx, Filter{Limit: 1}); !equalIDs(ids(got), []string{"b"}) {
		t.Errorf("Query() = %v", ids(got))
	}
	if data, err := b.Export(ctx, Filter{}, FormatJSON); err != nil || len(data) == 0 {
		t.Errorf("Export() = %d bytes, %v", len(data), err)
	}
	if n, _ := b.Purge(ctx, now.Add(-time.Hour)); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
	if ok, err := b.HealthCheck(ctx); !ok || err != nil {
		t.Errorf("HealthCheck() = %v, %v", ok, err)
	}
	if b.State() != "closed" {
		t.Errorf("State() = %s, want closed", b.State())
	}
}

func TestBreakerStore_ForwardsLifecycle(t *testing.T) {
	inner := &hookStore{MemoryStore: NewMemoryStore("hooked", 0)}
	b := NewBreakerStore(inner, DefaultBreakerConfig())
	ctx := context.Background()

	_ = b.Initialize(ctx)
	_ = b.Destroy(ctx)
	if inner.inits.Load() != 1 || inner.destroys.Load() != 1 {
		t.Errorf("lifecycle calls = %d/%d, want 1/1", inner.inits.Load(), inner.destroys.Load())
	}

	plain := NewBreakerStore(NewMemoryStore("plain", 0), DefaultBreakerConfig())
	if err := plain.Initialize(ctx); err != nil {
		t.Errorf("Initialize() on plain store error = %v", err)
	}
}

func TestBreakerStore_IsolatedInManager(t *testing.T) {
	healthy := NewMemoryStore("healthy", 0)
	flaky := NewBreakerStore(newFailingStore("flaky"), BreakerConfig{FailureThreshold: 1, Timeout: time.Hour})
	m := newTestManager(t, WithStores(healthy, flaky))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = m.Log(ctx, EventInput{})
		res := m.Flush(ctx)
		if len(res.Failed) != 1 || res.Failed[0] != "flaky" {
			t.Errorf("flush %d Failed = %v", i, res.Failed)
		}
	}
	if healthy.Len() != 3 {
		t.Errorf("healthy store len = %d, want 3", healthy.Len())
	}
}
