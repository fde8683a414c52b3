// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/auditflow/internal/logging"
	"github.com/tomtom215/auditflow/internal/masking"
	"github.com/tomtom215/auditflow/internal/metrics"
)

// Counter names registered with the metrics collector.
const (
	MetricEventsQueued    = "audit_events_queued"
	MetricEventsProcessed = "audit_events_processed"
	MetricEventsFailed    = "audit_events_failed"
	MetricAlertsTriggered = "audit_alerts_triggered"
)

// FlushResult reports the outcome of one flush.
type FlushResult struct {
	// Events is the number of events drained from the queue.
	Events int
	// Stores is the number of stores the batch was dispatched to.
	Stores int
	// Failed names the stores whose write returned an error.
	Failed []string
}

// PurgeResult reports per-store deletions of a purge fan-out.
type PurgeResult struct {
	Deleted map[string]int64
	Failed  []string
}

// Total returns the number of events deleted across all stores.
func (r PurgeResult) Total() int64 {
	var n int64
	for _, d := range r.Deleted {
		n += d
	}
	return n
}

// ManagerStats is a point-in-time view of manager counters.
type ManagerStats struct {
	Queued      int64 `json:"queued"`
	Processed   int64 `json:"processed"`
	Failed      int64 `json:"failed"`
	Filtered    int64 `json:"filtered"`
	QueueLength int   `json:"queueLength"`
	Stores      int   `json:"stores"`
	AlertRules  int   `json:"alertRules"`
	Alerts      int   `json:"alerts"`
	Destroyed   bool  `json:"destroyed"`
}

// Manager orchestrates audit event intake, batching, fan-out to stores and
// real-time alerting. It is safe for concurrent use.
type Manager struct {
	policyMu sync.RWMutex
	policy   Policy

	queueMu sync.Mutex
	queue   []Event

	// writeMu is held shared by every write path and exclusively by Destroy
	// when it closes intake. closed is guarded by writeMu.
	writeMu sync.RWMutex
	closed  bool

	storesMu sync.RWMutex
	stores   []Store

	alerts *alertEngine
	masker *masking.Masker
	logger zerolog.Logger
	now    func() time.Time

	queued    metrics.Counter
	processed metrics.Counter
	failed    metrics.Counter

	queuedTotal    atomic.Int64
	processedTotal atomic.Int64
	failedTotal    atomic.Int64
	filteredTotal  atomic.Int64

	schedMu   sync.Mutex
	schedStop chan struct{}
	schedDone chan struct{}

	bgMu       sync.Mutex
	background sync.WaitGroup

	destroyed   atomic.Bool
	destroyOnce sync.Once
	destroyMu   sync.Mutex
	destroyErrs []error
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	policy    Policy
	logger    *zerolog.Logger
	collector metrics.Collector
	masker    *masking.Masker
	stores    []Store
	rules     []AlertRule
	now       func() time.Time
}

// WithPolicy sets the initial policy.
func WithPolicy(p Policy) Option {
	return func(o *managerOptions) { o.policy = p.clone() }
}

// WithLogger sets the logger used for pipeline diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *managerOptions) { o.logger = &l }
}

// WithMetrics sets the collector backing the event counters.
func WithMetrics(c metrics.Collector) Option {
	return func(o *managerOptions) { o.collector = c }
}

// WithMasker sets the masker applied when the policy enables data masking.
func WithMasker(m *masking.Masker) Option {
	return func(o *managerOptions) { o.masker = m }
}

// WithStores registers stores in order. The first store serves reads.
func WithStores(stores ...Store) Option {
	return func(o *managerOptions) { o.stores = append(o.stores, stores...) }
}

// WithAlertRules registers alert rules.
func WithAlertRules(rules ...AlertRule) Option {
	return func(o *managerOptions) { o.rules = append(o.rules, rules...) }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) { o.now = now }
}

// NewManager builds a Manager and starts its flush scheduler when the policy
// enables async processing.
func NewManager(opts ...Option) (*Manager, error) {
	o := managerOptions{
		policy:    DefaultPolicy(),
		collector: metrics.Noop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validatePolicy(&o.policy); err != nil {
		return nil, err
	}

	logger := logging.WithComponent("audit")
	if o.logger != nil {
		logger = *o.logger
	}
	if o.masker == nil {
		o.masker = masking.Default()
	}
	if o.collector == nil {
		o.collector = metrics.Noop{}
	}

	m := &Manager{
		policy:    o.policy,
		masker:    o.masker,
		logger:    logger,
		now:       o.now,
		queued:    o.collector.NewCounter(MetricEventsQueued, "Audit events queued for batched persistence"),
		processed: o.collector.NewCounter(MetricEventsProcessed, "Audit events dispatched to stores"),
		failed:    o.collector.NewCounter(MetricEventsFailed, "Audit events that failed to persist, counted per store"),
	}
	m.alerts = newAlertEngine(logger, o.collector.NewCounter(MetricAlertsTriggered, "Audit alerts fired"))

	for _, s := range o.stores {
		m.AddStore(s)
	}
	for _, r := range o.rules {
		if err := m.alerts.add(r); err != nil {
			return nil, err
		}
	}

	if m.policy.AsyncProcessing {
		m.startScheduler(m.policy.FlushInterval)
	}
	return m, nil
}

func validatePolicy(p *Policy) error {
	if p.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalidPolicy, p.BatchSize)
	}
	if p.FlushInterval <= 0 {
		return fmt.Errorf("%w: flush interval must be positive, got %s", ErrInvalidPolicy, p.FlushInterval)
	}
	if !p.MinSeverity.Valid() {
		return fmt.Errorf("%w: unknown minimum severity %q", ErrInvalidPolicy, p.MinSeverity)
	}
	if p.RetentionDays < 0 {
		return fmt.Errorf("%w: retention days must not be negative, got %d", ErrInvalidPolicy, p.RetentionDays)
	}
	for _, c := range p.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidPolicy, c)
		}
	}
	return nil
}

// Log records an event. With async processing the event is queued and a
// flush runs inline once the queue reaches the batch size; otherwise the
// event is written to every store before Log returns. Events rejected by
// the policy return nil.
func (m *Manager) Log(ctx context.Context, in EventInput) error {
	if m.destroyed.Load() {
		return ErrManagerDestroyed
	}

	event, policy, ok := m.accept(in)
	if !ok {
		return nil
	}

	m.writeMu.RLock()
	defer m.writeMu.RUnlock()
	if m.closed {
		return ErrManagerDestroyed
	}

	if !policy.AsyncProcessing {
		m.dispatch(ctx, []Event{event})
		return nil
	}

	if m.enqueue(event) >= policy.BatchSize {
		m.Flush(ctx)
	}
	return nil
}

// LogSync records an event without waiting on any store. When the queue
// reaches the batch size a background flush is started.
func (m *Manager) LogSync(in EventInput) error {
	if m.destroyed.Load() {
		return ErrManagerDestroyed
	}

	event, policy, ok := m.accept(in)
	if !ok {
		return nil
	}

	m.writeMu.RLock()
	defer m.writeMu.RUnlock()
	if m.closed {
		return ErrManagerDestroyed
	}

	if m.enqueue(event) >= policy.BatchSize {
		m.bgMu.Lock()
		// after Destroy the final flush picks the queue up
		if !m.destroyed.Load() {
			m.background.Add(1)
			go func() {
				defer m.background.Done()
				m.Flush(context.Background())
			}()
		}
		m.bgMu.Unlock()
	}
	return nil
}

// accept enriches, filters, masks and alerts on an input. It returns the
// policy snapshot the decision was made under.
func (m *Manager) accept(in EventInput) (Event, Policy, bool) {
	m.policyMu.RLock()
	policy := m.policy
	m.policyMu.RUnlock()

	now := m.now()
	event := enrich(in, now)

	if !shouldLog(&policy, &event) {
		m.filteredTotal.Add(1)
		return Event{}, policy, false
	}

	if policy.DataMasking && len(event.Metadata) > 0 {
		event.Metadata = m.masker.MaskObject(event.Metadata)
	}

	if policy.RealTimeAlerting {
		m.alerts.evaluate(&event, now)
	}
	return event, policy, true
}

// enrich fills defaults for every absent field.
func enrich(in EventInput, now time.Time) Event {
	e := Event{
		ID:              in.ID,
		Timestamp:       in.Timestamp,
		EventType:       in.EventType,
		Category:        in.Category,
		Severity:        in.Severity,
		Operation:       in.Operation,
		Resource:        in.Resource,
		ResourceID:      in.ResourceID,
		UserID:          in.UserID,
		UserAgent:       in.UserAgent,
		IPAddress:       in.IPAddress,
		SessionID:       in.SessionID,
		Success:         true,
		ErrorCode:       in.ErrorCode,
		ErrorMessage:    in.ErrorMessage,
		Metadata:        cloneMap(in.Metadata),
		Service:         in.Service,
		RequestID:       in.RequestID,
		TraceID:         in.TraceID,
		RetentionPolicy: in.RetentionPolicy,
		Classification:  in.Classification,
	}
	if in.Success != nil {
		e.Success = *in.Success
	}
	if e.ID == "" {
		e.ID = generateEventID(now)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
	if e.EventType == "" {
		e.EventType = DefaultEventType
	}
	if e.Category == "" {
		e.Category = CategorySystem
	}
	if e.Severity == "" {
		e.Severity = SeverityLow
	}
	if e.Operation == "" {
		e.Operation = DefaultOperation
	}
	if e.Resource == "" {
		e.Resource = DefaultResource
	}
	if e.Service == "" {
		e.Service = DefaultService
	}
	return e
}

func shouldLog(p *Policy, e *Event) bool {
	if !p.Enabled {
		return false
	}
	if !p.allowsCategory(e.Category) {
		return false
	}
	return e.Severity.Rank() >= p.MinSeverity.Rank()
}

func (m *Manager) enqueue(e Event) int {
	m.queueMu.Lock()
	m.queue = append(m.queue, e)
	n := len(m.queue)
	m.queueMu.Unlock()

	m.queued.Add(1)
	m.queuedTotal.Add(1)
	metrics.SetQueueDepth(n)
	return n
}

// Flush drains the queue and writes the batch to every store concurrently.
// Store failures are logged and counted, never returned.
func (m *Manager) Flush(ctx context.Context) FlushResult {
	m.queueMu.Lock()
	batch := m.queue
	m.queue = nil
	m.queueMu.Unlock()

	metrics.SetQueueDepth(0)
	if len(batch) == 0 {
		return FlushResult{Stores: len(m.Stores())}
	}
	return m.dispatch(ctx, batch)
}

// dispatch writes one batch to every registered store with failure isolation.
func (m *Manager) dispatch(ctx context.Context, batch []Event) FlushResult {
	stores := m.Stores()
	result := FlushResult{Events: len(batch), Stores: len(stores)}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)
	for _, s := range stores {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			start := time.Now()
			err := safeStore(ctx, s, batch)
			metrics.RecordStoreWrite(s.Name(), len(batch), time.Since(start), err)
			if err != nil {
				m.logger.Error().Err(err).
					Str("store", s.Name()).
					Int("events", len(batch)).
					Msg("audit store write failed")
				mu.Lock()
				failed = append(failed, s.Name())
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	// keep registry order in the report
	if len(failed) > 0 {
		ordered := make([]string, 0, len(failed))
		for _, s := range stores {
			for _, name := range failed {
				if name == s.Name() {
					ordered = append(ordered, name)
					break
				}
			}
		}
		result.Failed = ordered

		m.logger.Warn().
			Strs("failed_stores", ordered).
			Int("events", len(batch)).
			Msg("audit flush completed with store failures")
	}

	n := int64(len(batch))
	m.processed.Add(float64(n))
	m.processedTotal.Add(n)
	if f := int64(len(result.Failed)) * n; f > 0 {
		m.failed.Add(float64(f))
		m.failedTotal.Add(f)
	}
	return result
}

// safeStore converts a panicking store into an error.
func safeStore(ctx context.Context, s Store, batch []Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Store(ctx, batch)
}

// QueueLength returns the number of events waiting for the next flush.
func (m *Manager) QueueLength() int {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return len(m.queue)
}

func (m *Manager) readStore() (Store, error) {
	m.storesMu.RLock()
	defer m.storesMu.RUnlock()
	if len(m.stores) == 0 {
		return nil, ErrNoStores
	}
	return m.stores[0], nil
}

// Query returns events from the first registered store.
func (m *Manager) Query(ctx context.Context, filter Filter) ([]Event, error) {
	s, err := m.readStore()
	if err != nil {
		return nil, err
	}
	events, err := s.Query(ctx, filter)
	if err != nil {
		m.logger.Error().Err(err).Str("store", s.Name()).Msg("audit query failed")
		return nil, fmt.Errorf("query store %s: %w", s.Name(), err)
	}
	return events, nil
}

// Count returns the number of matching events in the first registered store.
func (m *Manager) Count(ctx context.Context, filter Filter) (int64, error) {
	s, err := m.readStore()
	if err != nil {
		return 0, err
	}
	n, err := s.Count(ctx, filter)
	if err != nil {
		m.logger.Error().Err(err).Str("store", s.Name()).Msg("audit count failed")
		return 0, fmt.Errorf("count store %s: %w", s.Name(), err)
	}
	return n, nil
}

// Export serializes matching events from the first registered store.
func (m *Manager) Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error) {
	s, err := m.readStore()
	if err != nil {
		return nil, err
	}
	data, err := s.Export(ctx, filter, format)
	if err != nil {
		m.logger.Error().Err(err).Str("store", s.Name()).Str("format", string(format)).Msg("audit export failed")
		return nil, fmt.Errorf("export store %s: %w", s.Name(), err)
	}
	return data, nil
}

// Purge removes events older than before from every store. Individual store
// failures are reported in the result; the error is ErrNoStores or
// ErrManagerDestroyed only.
func (m *Manager) Purge(ctx context.Context, before time.Time) (PurgeResult, error) {
	if m.destroyed.Load() {
		return PurgeResult{}, ErrManagerDestroyed
	}
	stores := m.Stores()
	if len(stores) == 0 {
		return PurgeResult{}, ErrNoStores
	}

	result := PurgeResult{Deleted: make(map[string]int64, len(stores))}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, s := range stores {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			n, err := s.Purge(ctx, before)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Error().Err(err).Str("store", s.Name()).Time("before", before).Msg("audit purge failed")
				result.Failed = append(result.Failed, s.Name())
				return
			}
			result.Deleted[s.Name()] = n
		}(s)
	}
	wg.Wait()

	m.logger.Info().
		Int64("deleted", result.Total()).
		Time("before", before).
		Msg("audit purge completed")
	return result, nil
}

// ApplyRetention purges events older than the policy's retention period.
// A zero retention keeps everything.
func (m *Manager) ApplyRetention(ctx context.Context) (PurgeResult, error) {
	days := m.Policy().RetentionDays
	if days <= 0 {
		return PurgeResult{Deleted: map[string]int64{}}, nil
	}
	return m.Purge(ctx, m.now().AddDate(0, 0, -days))
}

// Policy returns a copy of the current policy.
func (m *Manager) Policy() Policy {
	m.policyMu.RLock()
	defer m.policyMu.RUnlock()
	return m.policy.clone()
}

// UpdatePolicy merges the non-nil fields of u into the current policy. The
// flush scheduler is restarted when the interval or async mode changes.
func (m *Manager) UpdatePolicy(u PolicyUpdate) error {
	if m.destroyed.Load() {
		return ErrManagerDestroyed
	}

	m.policyMu.Lock()
	next := m.policy.clone()
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.Categories != nil {
		next.Categories = append([]Category(nil), u.Categories...)
	}
	if u.MinSeverity != nil {
		next.MinSeverity = *u.MinSeverity
	}
	if u.RetentionDays != nil {
		next.RetentionDays = *u.RetentionDays
	}
	if u.RealTimeAlerting != nil {
		next.RealTimeAlerting = *u.RealTimeAlerting
	}
	if u.AsyncProcessing != nil {
		next.AsyncProcessing = *u.AsyncProcessing
	}
	if u.BatchSize != nil {
		next.BatchSize = *u.BatchSize
	}
	if u.FlushInterval != nil {
		next.FlushInterval = *u.FlushInterval
	}
	if u.DataMasking != nil {
		next.DataMasking = *u.DataMasking
	}
	if u.Compression != nil {
		next.Compression = *u.Compression
	}

	if err := validatePolicy(&next); err != nil {
		m.policyMu.Unlock()
		return err
	}

	prev := m.policy
	m.policy = next
	m.policyMu.Unlock()

	switch {
	case !next.AsyncProcessing:
		m.stopScheduler()
		if prev.AsyncProcessing {
			m.flushOpen()
		}
	case !prev.AsyncProcessing || prev.FlushInterval != next.FlushInterval:
		m.startScheduler(next.FlushInterval)
	}

	m.logger.Info().
		Bool("enabled", next.Enabled).
		Str("min_severity", string(next.MinSeverity)).
		Int("batch_size", next.BatchSize).
		Dur("flush_interval", next.FlushInterval).
		Msg("audit policy updated")
	return nil
}

// flushOpen drains the queue unless intake has been closed, in which case
// the final flush in Destroy owns it.
func (m *Manager) flushOpen() {
	m.writeMu.RLock()
	defer m.writeMu.RUnlock()
	if !m.closed {
		m.Flush(context.Background())
	}
}

// startScheduler (re)starts the periodic flush goroutine.
func (m *Manager) startScheduler(interval time.Duration) {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()

	m.stopSchedulerLocked()
	if m.destroyed.Load() {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	m.schedStop, m.schedDone = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.Flush(context.Background())
			}
		}
	}()
}

func (m *Manager) stopScheduler() {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	m.stopSchedulerLocked()
}

func (m *Manager) stopSchedulerLocked() {
	if m.schedStop == nil {
		return
	}
	close(m.schedStop)
	<-m.schedDone
	m.schedStop, m.schedDone = nil, nil
}

func (m *Manager) schedulerRunning() bool {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	return m.schedStop != nil
}

// AddStore registers a store. A store with the same name is replaced in place.
func (m *Manager) AddStore(s Store) {
	m.storesMu.Lock()
	defer m.storesMu.Unlock()

	for i := range m.stores {
		if m.stores[i].Name() == s.Name() {
			m.stores[i] = s
			return
		}
	}
	m.stores = append(m.stores, s)
}

// RemoveStore unregisters a store by name. It does not call Destroy.
func (m *Manager) RemoveStore(name string) bool {
	m.storesMu.Lock()
	defer m.storesMu.Unlock()

	for i := range m.stores {
		if m.stores[i].Name() == name {
			m.stores = append(m.stores[:i:i], m.stores[i+1:]...)
			return true
		}
	}
	return false
}

// Stores returns the registered stores in registration order.
func (m *Manager) Stores() []Store {
	m.storesMu.RLock()
	defer m.storesMu.RUnlock()
	return append([]Store(nil), m.stores...)
}

// AddAlertRule registers or replaces a rule by name.
func (m *Manager) AddAlertRule(rule AlertRule) error {
	return m.alerts.add(rule)
}

// RemoveAlertRule unregisters a rule by name.
func (m *Manager) RemoveAlertRule(name string) bool {
	return m.alerts.remove(name)
}

// AlertRules returns copies of the registered rules.
func (m *Manager) AlertRules() []AlertRule {
	return m.alerts.list()
}

// Alerts returns fired alerts matching q, most recent first.
func (m *Manager) Alerts(q AlertQuery) []Alert {
	return m.alerts.query(q)
}

// AcknowledgeAlert marks an alert acknowledged.
func (m *Manager) AcknowledgeAlert(id string) error {
	return m.alerts.acknowledge(id)
}

// HealthCheck probes every store concurrently. Errors and panics map to false.
func (m *Manager) HealthCheck(ctx context.Context) map[string]bool {
	stores := m.Stores()
	result := make(map[string]bool, len(stores))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, s := range stores {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			ok := m.probe(ctx, s)
			mu.Lock()
			result[s.Name()] = ok
			mu.Unlock()
		}(s)
	}
	wg.Wait()
	return result
}

func (m *Manager) probe(ctx context.Context, s Store) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("store", s.Name()).Interface("panic", r).Msg("audit store health check panicked")
			healthy = false
		}
	}()

	ok, err := s.HealthCheck(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Str("store", s.Name()).Msg("audit store health check failed")
		return false
	}
	return ok
}

// Initialize runs every store's Initialize hook concurrently. The first
// failure cancels the rest and is returned.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.destroyed.Load() {
		return ErrManagerDestroyed
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range m.Stores() {
		hook, ok := s.(Initializer)
		if !ok {
			continue
		}
		name := s.Name()
		g.Go(func() error {
			if err := hook.Initialize(gctx); err != nil {
				return fmt.Errorf("initialize store %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Error().Err(err).Msg("audit initialization failed")
		return err
	}

	m.logger.Info().Int("stores", len(m.Stores())).Msg("audit manager initialized")
	return nil
}

// Destroy stops the scheduler, flushes what is queued and releases every
// store. Later calls are no-ops; later Log calls fail with ErrManagerDestroyed.
func (m *Manager) Destroy(ctx context.Context) {
	m.destroyOnce.Do(func() {
		m.bgMu.Lock()
		m.destroyed.Store(true)
		m.bgMu.Unlock()

		// Waits for in-flight Log calls; later ones see closed and fail.
		m.writeMu.Lock()
		m.closed = true
		m.writeMu.Unlock()

		m.stopScheduler()
		m.background.Wait()

		res := m.Flush(ctx)

		var errs []error
		for _, s := range m.Stores() {
			d, ok := s.(Destroyer)
			if !ok {
				continue
			}
			if err := d.Destroy(ctx); err != nil {
				m.logger.Error().Err(err).Str("store", s.Name()).Msg("audit store destroy failed")
				errs = append(errs, fmt.Errorf("destroy store %s: %w", s.Name(), err))
			}
		}

		m.destroyMu.Lock()
		m.destroyErrs = errs
		m.destroyMu.Unlock()

		m.logger.Info().
			Int("flushed", res.Events).
			Int("destroy_errors", len(errs)).
			Msg("audit manager destroyed")
	})
}

// DestroyErrors returns the store teardown failures collected by Destroy.
func (m *Manager) DestroyErrors() []error {
	m.destroyMu.Lock()
	defer m.destroyMu.Unlock()
	return append([]error(nil), m.destroyErrs...)
}

// Close destroys the manager and returns the joined teardown failures.
func (m *Manager) Close() error {
	m.Destroy(context.Background())
	return errors.Join(m.DestroyErrors()...)
}

// Destroyed reports whether Destroy has been called.
func (m *Manager) Destroyed() bool {
	return m.destroyed.Load()
}

// Stats returns current counters.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Queued:      m.queuedTotal.Load(),
		Processed:   m.processedTotal.Load(),
		Failed:      m.failedTotal.Load(),
		Filtered:    m.filteredTotal.Load(),
		QueueLength: m.QueueLength(),
		Stores:      len(m.Stores()),
		AlertRules:  len(m.alerts.list()),
		Alerts:      m.alerts.count(),
		Destroyed:   m.destroyed.Load(),
	}
}
