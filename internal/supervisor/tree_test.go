// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/tomtom215/auditflow/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("creates hierarchical supervisor tree", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   time.Second,
			ShutdownTimeout:  10 * time.Second,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.Root() == nil {
			t.Error("root supervisor should not be nil")
		}
	})

	t.Run("applies default values for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.config != DefaultTreeConfig() {
			t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
		}
	})

	t.Run("nil logger uses zerolog bridge", func(t *testing.T) {
		tree, err := NewSupervisorTree(nil, TreeConfig{})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.logger == nil {
			t.Error("logger should default to the zerolog bridge")
		}
	})
}

func TestTreeConfigFrom(t *testing.T) {
	got := TreeConfigFrom(config.SupervisorConfig{
		FailureThreshold: 3,
		FailureDecay:     10,
		FailureBackoff:   time.Second,
		ShutdownTimeout:  2 * time.Second,
	})
	want := TreeConfig{FailureThreshold: 3, FailureDecay: 10, FailureBackoff: time.Second, ShutdownTimeout: 2 * time.Second}
	if got != want {
		t.Errorf("TreeConfigFrom() = %+v, want %+v", got, want)
	}
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	t.Run("tree starts every layer and stops gracefully", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
			FailureBackoff:  100 * time.Millisecond,
			ShutdownTimeout: time.Second,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		storageSvc := newMockService("storage")
		ingestSvc := newMockService("ingest")
		apiSvc := newMockService("api")
		tree.AddStorageService(storageSvc)
		tree.AddIngestService(ingestSvc)
		tree.AddAPIService(apiSvc)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- tree.Serve(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		for _, svc := range []*mockService{storageSvc, ingestSvc, apiSvc} {
			if svc.startCount.Load() < 1 {
				t.Errorf("%s service was not started", svc.name)
			}
		}
		cancel()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down in time")
		}
	})

	t.Run("ServeBackground returns channel", func(t *testing.T) {
		tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		select {
		case err := <-tree.ServeBackground(ctx):
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Error("did not receive from error channel")
		}
	})
}

func TestSupervisorTreeRemoveIngestService(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})

	svc := newMockService("ingest")
	token := tree.AddIngestService(svc)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := tree.RemoveIngestService(token); err != nil {
		t.Errorf("RemoveIngestService() error = %v", err)
	}
	cancel()
	<-errCh
}

func TestSupervisorTreeFailureHandling(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failingSvc := newMockService("failing")
	failingSvc.maxFails = 2
	stableSvc := newMockService("stable")

	tree.AddIngestService(failingSvc)
	tree.AddAPIService(stableSvc)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	time.Sleep(200 * time.Millisecond)

	if n := failingSvc.startCount.Load(); n < 3 {
		t.Errorf("expected at least 3 starts for failing service, got %d", n)
	}
	if n := stableSvc.startCount.Load(); n != 1 {
		t.Errorf("stable service started %d times, want 1", n)
	}
	cancel()
	<-errCh
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()

	if cfg.FailureThreshold != 5.0 {
		t.Errorf("expected FailureThreshold 5.0, got %f", cfg.FailureThreshold)
	}
	if cfg.FailureDecay != 30.0 {
		t.Errorf("expected FailureDecay 30.0, got %f", cfg.FailureDecay)
	}
	if cfg.FailureBackoff != 15*time.Second {
		t.Errorf("expected FailureBackoff 15s, got %v", cfg.FailureBackoff)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected ShutdownTimeout 10s, got %v", cfg.ShutdownTimeout)
	}
}
