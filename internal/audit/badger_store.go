// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/auditflow/internal/logging"
)

// Key prefixes for BadgerDB storage
const (
	eventKeyPrefix   = "event:"
	eventIDKeyPrefix = "event_id:"
)

// BadgerStoreConfig configures a BadgerStore opened by OpenBadgerStore.
type BadgerStoreConfig struct {
	Name     string
	Dir      string
	InMemory bool
	Logger   *zerolog.Logger
}

// BadgerStore persists events in an embedded BadgerDB. Event keys sort
// chronologically so range scans and purges walk time order.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
	name   string
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewBadgerStore wraps an open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB, name string) *BadgerStore {
	if name == "" {
		name = "badger"
	}
	return &BadgerStore{
		db:     db,
		name:   name,
		logger: logging.WithComponent("audit").With().Str("store", name).Logger(),
	}
}

// OpenBadgerStore opens (or creates) a database and returns a store owning it.
func OpenBadgerStore(cfg BadgerStoreConfig) (*BadgerStore, error) {
	logger := logging.WithComponent("badger")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	opts := badger.DefaultOptions(cfg.Dir).WithLogger(badgerLogger{logger})
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	} else if cfg.Dir == "" {
		return nil, errors.New("badger store requires a directory unless in-memory")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := NewBadgerStore(db, cfg.Name)
	s.ownsDB = true
	return s, nil
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Trace().Msgf(strings.TrimSpace(format), args...)
}

// Name returns the registry key of the store.
func (s *BadgerStore) Name() string {
	return s.name
}

// timeKey renders the chronological part of an event key.
func timeKey(t time.Time) string {
	nanos := t.UnixNano()
	if nanos < 0 {
		nanos = 0
	}
	return fmt.Sprintf("%s%020d:", eventKeyPrefix, nanos)
}

func eventKey(e *Event) []byte {
	return []byte(timeKey(e.Timestamp) + e.ID)
}

// eventKeyIDOffset is where the id starts in an event key: the prefix, 20
// timestamp digits and a separator. Ids may themselves contain colons.
const eventKeyIDOffset = len(eventKeyPrefix) + 20 + 1

// eventIDFromKey extracts the event id from an event key.
func eventIDFromKey(key []byte) (string, bool) {
	if len(key) <= eventKeyIDOffset {
		return "", false
	}
	return string(key[eventKeyIDOffset:]), true
}

func (s *BadgerStore) checkOpen() error {
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// badgerChunkSize bounds the events written per transaction.
const badgerChunkSize = 500

// Store writes the batch. Events whose id is already stored are skipped.
func (s *BadgerStore) Store(ctx context.Context, events []Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	for start := 0; start < len(events); start += badgerChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+badgerChunkSize, len(events))
		if err := s.storeChunk(events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) storeChunk(events []Event) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for i := range events {
			e := &events[i]
			idKey := []byte(eventIDKeyPrefix + e.ID)

			_, err := txn.Get(idKey)
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("lookup event %s: %w", e.ID, err)
			}

			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal event %s: %w", e.ID, err)
			}
			key := eventKey(e)
			if err := txn.Set(key, data); err != nil {
				return fmt.Errorf("set event %s: %w", e.ID, err)
			}
			if err := txn.Set(idKey, key); err != nil {
				return fmt.Errorf("set event index %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// scan visits events in chronological order within the filter's time range.
func (s *BadgerStore) scan(ctx context.Context, filter *Filter, visit func(*Event)) error {
	prefix := []byte(eventKeyPrefix)
	start := prefix
	if filter.StartTime != nil {
		start = []byte(timeKey(*filter.StartTime))
	}
	var end []byte
	if filter.EndTime != nil {
		end = []byte(timeKey(filter.EndTime.Add(time.Nanosecond)))
	}

	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if end != nil && bytes.Compare(item.Key(), end) >= 0 {
				break
			}

			var e Event
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				s.logger.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping undecodable audit event")
				continue
			}
			if MatchFilter(&e, filter) {
				visit(&e)
			}
		}
		return nil
	})
}

// Query retrieves events matching the filter.
func (s *BadgerStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var events []Event
	if err := s.scan(ctx, &filter, func(e *Event) { events = append(events, *e) }); err != nil {
		return nil, fmt.Errorf("scan audit events: %w", err)
	}
	SortEvents(events, filter)
	return Paginate(events, filter), nil
}

// Count returns the number of events matching the filter.
func (s *BadgerStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int64
	if err := s.scan(ctx, &filter, func(*Event) { n++ }); err != nil {
		return 0, fmt.Errorf("scan audit events: %w", err)
	}
	return n, nil
}

// Export serializes the events matching the filter.
func (s *BadgerStore) Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error) {
	events, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return EncodeEvents(events, format)
}

// Purge deletes every event keyed before the cutoff.
func (s *BadgerStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	prefix := []byte(eventKeyPrefix)
	cutoff := []byte(timeKey(before))

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if bytes.Compare(key, cutoff) >= 0 {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan expired audit events: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete audit event: %w", err)
		}
		if id, ok := eventIDFromKey(key); ok {
			if err := wb.Delete([]byte(eventIDKeyPrefix + id)); err != nil {
				return 0, fmt.Errorf("delete audit event index: %w", err)
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush audit purge: %w", err)
	}

	s.logger.Info().Int("deleted", len(keys)).Time("before", before).Msg("Deleted old audit events")
	return int64(len(keys)), nil
}

// HealthCheck reports whether the database is open.
func (s *BadgerStore) HealthCheck(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db.IsClosed() {
		return false, ErrStoreClosed
	}
	return true, nil
}

// Destroy closes the database when the store opened it.
func (s *BadgerStore) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.ownsDB {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}
