// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/auditflow/internal/audit"
	"github.com/tomtom215/auditflow/internal/metrics"
)

type fakeApplier struct {
	calls  atomic.Int32
	result audit.PurgeResult
	err    error
	swept  chan struct{}
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{swept: make(chan struct{}, 16)}
}

func (f *fakeApplier) ApplyRetention(ctx context.Context) (audit.PurgeResult, error) {
	f.calls.Add(1)
	select {
	case f.swept <- struct{}{}:
	default:
	}
	return f.result, f.err
}

func TestNewRetentionService_DefaultInterval(t *testing.T) {
	if got := NewRetentionService(newFakeApplier(), 0).interval; got != time.Hour {
		t.Errorf("interval = %v, want %v", got, time.Hour)
	}
	if got := NewRetentionService(newFakeApplier(), time.Minute).interval; got != time.Minute {
		t.Errorf("interval = %v, want %v", got, time.Minute)
	}
}

func TestRetentionService_SweepsImmediatelyAndOnTick(t *testing.T) {
	applier := newFakeApplier()
	svc := NewRetentionService(applier, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-applier.swept:
		case <-time.After(time.Second):
			t.Fatalf("sweep %d did not run", i+1)
		}
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestRetentionService_Sweep(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"success", nil, nil},
		{"transient failure", errors.New("disk busy"), nil},
		{"no stores", audit.ErrNoStores, nil},
		{"manager destroyed", audit.ErrManagerDestroyed, suture.ErrDoNotRestart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := newFakeApplier()
			applier.err = tt.err
			err := NewRetentionService(applier, time.Hour).sweep(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("sweep() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetentionService_RecordsPurged(t *testing.T) {
	applier := newFakeApplier()
	applier.result = audit.PurgeResult{Deleted: map[string]int64{"retention-test": 7}}

	counter := metrics.RetentionPurged.WithLabelValues("retention-test")
	before := testutil.ToFloat64(counter)

	if err := NewRetentionService(applier, time.Hour).sweep(context.Background()); err != nil {
		t.Fatalf("sweep() error = %v", err)
	}
	if got := testutil.ToFloat64(counter) - before; got != 7 {
		t.Errorf("purged counter delta = %v, want 7", got)
	}
}

func TestRetentionService_StopsOnDestroyedManager(t *testing.T) {
	m, err := audit.NewManager(audit.WithStores(audit.NewMemoryStore("memory", 0)))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	m.Destroy(context.Background())

	err = NewRetentionService(m, time.Hour).Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() = %v, want suture.ErrDoNotRestart", err)
	}
}
