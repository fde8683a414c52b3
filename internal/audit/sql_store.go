// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/auditflow/internal/logging"
)

// Dialect selects SQL syntax differences between supported databases.
type Dialect string

const (
	DialectDuckDB   Dialect = "duckdb"
	DialectPostgres Dialect = "postgres"
)

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "duckdb"
}

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) jsonType() string {
	if d == DialectPostgres {
		return "JSONB"
	}
	return "JSON"
}

// DefaultTable is the table used when SQLStoreConfig.Table is empty.
const DefaultTable = "audit_events"

// MaxExportRows caps the rows returned by Export.
const MaxExportRows = 10000

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sortColumns allow-lists ORDER BY targets.
var sortColumns = map[string]string{
	SortFieldTimestamp: "timestamp",
	SortFieldEventType: "event_type",
	SortFieldCategory:  "category",
	SortFieldSeverity:  "severity_rank",
	SortFieldOperation: "operation",
	SortFieldResource:  "resource",
	SortFieldUserID:    "user_id",
	SortFieldService:   "service",
}

// searchColumns are matched by Filter.Search.
var searchColumns = []string{
	"event_type", "operation", "resource", "resource_id", "user_id", "service", "error_message",
}

// SQLStoreConfig configures a SQLStore.
type SQLStoreConfig struct {
	Name    string
	Dialect Dialect
	Table   string
	// DSN is used by OpenSQLStore.
	DSN string
	// MaxOpenConns limits the pool opened by OpenSQLStore. Zero keeps the driver default.
	MaxOpenConns int
	Logger       *zerolog.Logger
}

// SQLStore persists events in a relational table through database/sql.
type SQLStore struct {
	db      *sql.DB
	ownsDB  bool
	name    string
	dialect Dialect
	table   string
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewSQLStore wraps an existing connection pool. The caller keeps ownership
// of db; Destroy does not close it.
func NewSQLStore(db *sql.DB, cfg SQLStoreConfig) (*SQLStore, error) {
	if cfg.Name == "" {
		cfg.Name = "database"
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectDuckDB
	}
	if cfg.Dialect != DialectDuckDB && cfg.Dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported sql dialect %q", cfg.Dialect)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !identPattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}

	logger := logging.WithComponent("audit")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &SQLStore{
		db:      db,
		name:    cfg.Name,
		dialect: cfg.Dialect,
		table:   cfg.Table,
		logger:  logger.With().Str("store", cfg.Name).Str("dialect", string(cfg.Dialect)).Logger(),
	}, nil
}

// OpenSQLStore opens a pool for cfg.DSN and returns a store that owns it.
// The dialect's driver must be registered by the caller's imports.
func OpenSQLStore(cfg SQLStoreConfig) (*SQLStore, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectDuckDB
	}
	db, err := sql.Open(cfg.Dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s, err := NewSQLStore(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Name returns the registry key of the store.
func (s *SQLStore) Name() string {
	return s.name
}

// DB exposes the underlying pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) schema() []string {
	t := s.table
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + t + ` (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			category TEXT NOT NULL,
			severity TEXT NOT NULL,
			severity_rank INTEGER NOT NULL,
			operation TEXT NOT NULL,
			resource TEXT NOT NULL,
			resource_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			metadata ` + s.dialect.jsonType() + `,
			service TEXT NOT NULL,
			request_id TEXT NOT NULL DEFAULT '',
			trace_id TEXT NOT NULL DEFAULT '',
			retention_policy TEXT NOT NULL DEFAULT '',
			classification TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t + `_timestamp ON ` + t + `(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t + `_event_type ON ` + t + `(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t + `_category ON ` + t + `(category)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t + `_severity ON ` + t + `(severity)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t + `_user_id ON ` + t + `(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t + `_service ON ` + t + `(service)`,
	}
}

// Initialize creates the table and its indexes if missing.
func (s *SQLStore) Initialize(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	s.logger.Info().Str("table", s.table).Msg("Audit events table created/verified")
	return nil
}

const insertColumns = `id, timestamp, event_type, category, severity, severity_rank, operation,
	resource, resource_id, user_id, user_agent, ip_address, session_id, success,
	error_code, error_message, metadata, service, request_id, trace_id,
	retention_policy, classification`

const insertColumnCount = 22

func (s *SQLStore) insertQuery() string {
	ph := make([]string, insertColumnCount)
	for i := range ph {
		ph[i] = s.dialect.placeholder(i + 1)
	}
	return "INSERT INTO " + s.table + " (" + insertColumns + ") VALUES (" +
		strings.Join(ph, ", ") + ") ON CONFLICT (id) DO NOTHING"
}

func eventParams(e *Event) ([]interface{}, error) {
	var metadata *string
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata of %s: %w", e.ID, err)
		}
		m := string(data)
		metadata = &m
	}
	return []interface{}{
		e.ID,
		e.Timestamp.UTC(),
		e.EventType,
		string(e.Category),
		string(e.Severity),
		e.Severity.Rank(),
		e.Operation,
		e.Resource,
		e.ResourceID,
		e.UserID,
		e.UserAgent,
		e.IPAddress,
		e.SessionID,
		e.Success,
		e.ErrorCode,
		e.ErrorMessage,
		metadata,
		e.Service,
		e.RequestID,
		e.TraceID,
		e.RetentionPolicy,
		e.Classification,
	}, nil
}

// Store inserts the batch in a single transaction. Duplicate ids are ignored.
func (s *SQLStore) Store(ctx context.Context, events []Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.insertQuery())
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		params, perr := eventParams(&events[i])
		if perr != nil {
			return perr
		}
		if _, err = stmt.ExecContext(ctx, params...); err != nil {
			return fmt.Errorf("failed to save audit event %s: %w", events[i].ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit audit insert: %w", err)
	}
	return nil
}

// queryBuilder accumulates WHERE predicates with dialect placeholders.
type queryBuilder struct {
	dialect    Dialect
	conditions []string
	args       []interface{}
}

func (b *queryBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.placeholder(len(b.args))
}

func (b *queryBuilder) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = b.arg(v)
	}
	b.conditions = append(b.conditions, column+" IN ("+strings.Join(ph, ", ")+")")
}

func (b *queryBuilder) where() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// buildFilterConditions translates a Filter into WHERE predicates.
func buildFilterConditions(d Dialect, filter *Filter) *queryBuilder {
	b := &queryBuilder{dialect: d}

	if filter.StartTime != nil {
		b.conditions = append(b.conditions, "timestamp >= "+b.arg(filter.StartTime.UTC()))
	}
	if filter.EndTime != nil {
		b.conditions = append(b.conditions, "timestamp <= "+b.arg(filter.EndTime.UTC()))
	}

	b.in("user_id", filter.UserIDs)
	b.in("event_type", filter.EventTypes)
	b.in("category", toStrings(filter.Categories))
	b.in("severity", toStrings(filter.Severities))
	b.in("service", filter.Services)
	b.in("resource", filter.Resources)

	if filter.Success != nil {
		b.conditions = append(b.conditions, "success = "+b.arg(*filter.Success))
	}

	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(filter.Search)) + "%"
		ors := make([]string, len(searchColumns))
		for i, col := range searchColumns {
			ors[i] = "LOWER(" + col + ") LIKE " + b.arg(pattern) + ` ESCAPE '\'`
		}
		b.conditions = append(b.conditions, "("+strings.Join(ors, " OR ")+")")
	}

	return b
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// orderAndLimit renders ORDER BY / LIMIT / OFFSET. maxRows > 0 caps the limit.
func orderAndLimit(filter *Filter, maxRows int) string {
	column := sortColumns[filter.orderBy()]
	dir := "DESC"
	if !filter.descending() {
		dir = "ASC"
	}

	clause := " ORDER BY " + column + " " + dir + ", id " + dir

	limit := filter.Limit
	if maxRows > 0 && (limit <= 0 || limit > maxRows) {
		limit = maxRows
	}
	if limit > 0 {
		clause += " LIMIT " + strconv.Itoa(limit)
	}
	if filter.Offset > 0 {
		clause += " OFFSET " + strconv.Itoa(filter.Offset)
	}
	return clause
}

const selectColumns = `id, timestamp, event_type, category, severity, operation, resource,
	resource_id, user_id, user_agent, ip_address, session_id, success, error_code,
	error_message, CAST(metadata AS VARCHAR) AS metadata, service, request_id, trace_id,
	retention_policy, classification`

func (s *SQLStore) buildQuery(filter *Filter, maxRows int) (string, []interface{}) {
	b := buildFilterConditions(s.dialect, filter)
	return "SELECT " + selectColumns + " FROM " + s.table + b.where() + orderAndLimit(filter, maxRows), b.args
}

func (s *SQLStore) queryEvents(ctx context.Context, filter *Filter, maxRows int) ([]Event, error) {
	query, args := s.buildQuery(filter, maxRows)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to scan audit event row")
			continue
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		e                  Event
		category, severity string
		metadata           sql.NullString
	)
	err := rows.Scan(
		&e.ID, &e.Timestamp, &e.EventType, &category, &severity, &e.Operation, &e.Resource,
		&e.ResourceID, &e.UserID, &e.UserAgent, &e.IPAddress, &e.SessionID, &e.Success,
		&e.ErrorCode, &e.ErrorMessage, &metadata, &e.Service, &e.RequestID, &e.TraceID,
		&e.RetentionPolicy, &e.Classification,
	)
	if err != nil {
		return Event{}, err
	}
	e.Category = Category(category)
	e.Severity = Severity(severity)
	e.Timestamp = e.Timestamp.UTC()
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return Event{}, fmt.Errorf("decode metadata of %s: %w", e.ID, err)
		}
	}
	return e, nil
}

// Query retrieves events matching the filter.
func (s *SQLStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return s.queryEvents(ctx, &filter, 0)
}

// Count returns the number of events matching the filter.
func (s *SQLStore) Count(ctx context.Context, filter Filter) (int64, error) {
	b := buildFilterConditions(s.dialect, &filter)
	query := "SELECT COUNT(*) FROM " + s.table + b.where()

	var count int64
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// Export serializes at most MaxExportRows matching events.
func (s *SQLStore) Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error) {
	events, err := s.queryEvents(ctx, &filter, MaxExportRows)
	if err != nil {
		return nil, err
	}
	return EncodeEvents(events, format)
}

// Purge removes events older than before.
func (s *SQLStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := "DELETE FROM " + s.table + " WHERE timestamp < " + s.dialect.placeholder(1)

	result, err := s.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}

	if count > 0 {
		s.logger.Info().Int64("deleted", count).Time("older_than", before).Msg("Deleted old audit events")
	}
	return count, nil
}

// HealthCheck pings the database.
func (s *SQLStore) HealthCheck(ctx context.Context) (bool, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return false, fmt.Errorf("ping audit database: %w", err)
	}
	return true, nil
}

// Destroy closes the pool when the store opened it.
func (s *SQLStore) Destroy(ctx context.Context) error {
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
		return fmt.Errorf("close audit database: %w", err)
	}
	return nil
}
