// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	name   string
	events []Event
	mu     sync.RWMutex
	maxLen int
}

// NewMemoryStore creates a new in-memory audit store holding at most maxLen events.
func NewMemoryStore(name string, maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	if name == "" {
		name = "memory"
	}
	return &MemoryStore{
		name:   name,
		events: make([]Event, 0, min(maxLen, 1024)),
		maxLen: maxLen,
	}
}

// Name returns the registry key of the store.
func (s *MemoryStore) Name() string {
	return s.name
}

// Store appends a batch of events.
func (s *MemoryStore) Store(ctx context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range events {
		// Enforce max length by removing oldest events
		if len(s.events) >= s.maxLen {
			removeCount := max(s.maxLen/10, 1)
			s.events = s.events[removeCount:]
		}
		s.events = append(s.events, events[i].Clone())
	}
	return nil
}

// Query retrieves events matching the filter.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := ApplyFilter(s.events, filter)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

// Count returns the number of events matching the filter.
func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if MatchFilter(&s.events[i], &filter) {
			count++
		}
	}
	return count, nil
}

// Export serializes the events matching the filter.
func (s *MemoryStore) Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error) {
	events, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return EncodeEvents(events, format)
}

// Purge removes events older than the given time.
func (s *MemoryStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64

	for idx := range s.events {
		if s.events[idx].Timestamp.Before(before) {
			deleted++
		} else {
			kept = append(kept, s.events[idx])
		}
	}

	s.events = kept
	return deleted, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *MemoryStore) HealthCheck(ctx context.Context) (bool, error) {
	return true, nil
}

// Clear removes all events (for testing).
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

// Len returns the number of events in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
