// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"context"
	"strings"
	"time"
)

// Category groups audit events by domain.
type Category string

const (
	CategorySecurity Category = "SECURITY"
	CategoryData     Category = "DATA"
	CategorySystem   Category = "SYSTEM"
	CategoryBusiness Category = "BUSINESS"
)

// AllCategories returns every known category in declaration order.
func AllCategories() []Category {
	return []Category{CategorySecurity, CategoryData, CategorySystem, CategoryBusiness}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySecurity, CategoryData, CategorySystem, CategoryBusiness:
		return true
	}
	return false
}

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the fixed ordering LOW < MEDIUM < HIGH < CRITICAL.
// Unknown severities rank below LOW.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AlertLevel is the level attached to a fired alert.
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "INFO"
	AlertLevelWarning  AlertLevel = "WARNING"
	AlertLevelError    AlertLevel = "ERROR"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

// Valid reports whether l is one of the known alert levels.
func (l AlertLevel) Valid() bool {
	switch l {
	case AlertLevelInfo, AlertLevelWarning, AlertLevelError, AlertLevelCritical:
		return true
	}
	return false
}

// Event is a single immutable audit record.
type Event struct {
	// ID is unique for the lifetime of the process.
	ID string `json:"id"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// EventType is a free-form type such as "user.login".
	EventType string `json:"eventType"`

	Category Category `json:"category"`
	Severity Severity `json:"severity"`

	// Operation and Resource describe what was done to what.
	Operation  string `json:"operation"`
	Resource   string `json:"resource"`
	ResourceID string `json:"resourceId,omitempty"`

	UserID    string `json:"userId,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	Success      bool   `json:"success"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	// Metadata contains event-specific details, masked when the policy asks for it.
	Metadata map[string]any `json:"metadata,omitempty"`

	Service   string `json:"service"`
	RequestID string `json:"requestId,omitempty"`
	TraceID   string `json:"traceId,omitempty"`

	RetentionPolicy string `json:"retentionPolicy,omitempty"`
	Classification  string `json:"classification,omitempty"`
}

// Clone returns a copy of the event whose metadata can be mutated independently.
func (e *Event) Clone() Event {
	c := *e
	c.Metadata = cloneMap(e.Metadata)
	return c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// EventInput is the partial event accepted by Manager.Log and Manager.LogSync.
// Zero values are replaced by defaults during enrichment.
type EventInput struct {
	ID              string
	Timestamp       time.Time
	EventType       string
	Category        Category
	Severity        Severity
	Operation       string
	Resource        string
	ResourceID      string
	UserID          string
	UserAgent       string
	IPAddress       string
	SessionID       string
	Success         *bool
	ErrorCode       string
	ErrorMessage    string
	Metadata        map[string]any
	Service         string
	RequestID       string
	TraceID         string
	RetentionPolicy string
	Classification  string
}

// Defaults applied by enrichment.
const (
	DefaultEventType = "UNKNOWN"
	DefaultOperation = "UNKNOWN"
	DefaultResource  = "unknown"
	DefaultService   = "unknown"
)

// Bool returns a pointer to b, for EventInput.Success and Filter.Success.
func Bool(b bool) *bool {
	return &b
}

// Policy governs which events are accepted, queued, masked and alerted on.
type Policy struct {
	Enabled          bool          `json:"enabled"`
	Categories       []Category    `json:"categories"`
	MinSeverity      Severity      `json:"minSeverity"`
	RetentionDays    int           `json:"retentionDays"`
	RealTimeAlerting bool          `json:"realTimeAlerting"`
	AsyncProcessing  bool          `json:"asyncProcessing"`
	BatchSize        int           `json:"batchSize"`
	FlushInterval    time.Duration `json:"flushInterval"`
	DataMasking      bool          `json:"dataMasking"`

	// Compression is read when a pipeline is built from configuration: it
	// turns on rotated-file compression for every file sink. Changing it
	// later does not reconfigure open stores.
	Compression bool `json:"compression"`
}

// DefaultPolicy returns the policy a Manager starts with.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:          true,
		Categories:       AllCategories(),
		MinSeverity:      SeverityLow,
		RetentionDays:    90,
		RealTimeAlerting: true,
		AsyncProcessing:  true,
		BatchSize:        100,
		FlushInterval:    5 * time.Second,
		DataMasking:      true,
		Compression:      false,
	}
}

func (p Policy) clone() Policy {
	p.Categories = append([]Category(nil), p.Categories...)
	return p
}

func (p Policy) allowsCategory(c Category) bool {
	for _, allowed := range p.Categories {
		if allowed == c {
			return true
		}
	}
	return false
}

// PolicyUpdate carries a partial policy; nil fields are left unchanged.
type PolicyUpdate struct {
	Enabled          *bool
	Categories       []Category
	MinSeverity      *Severity
	RetentionDays    *int
	RealTimeAlerting *bool
	AsyncProcessing  *bool
	BatchSize        *int
	FlushInterval    *time.Duration
	DataMasking      *bool
	Compression      *bool
}

// SortDirection orders query results.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Filter is the read-side query descriptor shared by query, count, export and purge.
type Filter struct {
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	UserIDs    []string   `json:"userIds,omitempty"`
	EventTypes []string   `json:"eventTypes,omitempty"`
	Categories []Category `json:"categories,omitempty"`
	Severities []Severity `json:"severities,omitempty"`
	Services   []string   `json:"services,omitempty"`
	Resources  []string   `json:"resources,omitempty"`
	Success    *bool      `json:"success,omitempty"`

	// Search is a case-insensitive substring match over the descriptive fields.
	Search string `json:"search,omitempty"`

	// Offset and Limit paginate the sorted result. Limit 0 means no limit.
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`

	// OrderBy is one of the SortField values; defaults to timestamp.
	OrderBy        string        `json:"orderBy,omitempty"`
	OrderDirection SortDirection `json:"orderDirection,omitempty"`
}

// Sort fields accepted by Filter.OrderBy.
const (
	SortFieldTimestamp = "timestamp"
	SortFieldEventType = "eventType"
	SortFieldCategory  = "category"
	SortFieldSeverity  = "severity"
	SortFieldOperation = "operation"
	SortFieldResource  = "resource"
	SortFieldUserID    = "userId"
	SortFieldService   = "service"
)

func (f Filter) orderBy() string {
	switch f.OrderBy {
	case SortFieldTimestamp, SortFieldEventType, SortFieldCategory, SortFieldSeverity,
		SortFieldOperation, SortFieldResource, SortFieldUserID, SortFieldService:
		return f.OrderBy
	default:
		return SortFieldTimestamp
	}
}

func (f Filter) descending() bool {
	return !strings.EqualFold(string(f.OrderDirection), string(SortAsc))
}

// ExportFormat selects the serialization used by Store.Export.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatXML  ExportFormat = "xml"
	FormatCEF  ExportFormat = "cef"
)

// Store is the persistence contract every sink implements.
type Store interface {
	// Name is the unique registry key for this store.
	Name() string

	// Store persists a batch of events.
	Store(ctx context.Context, events []Event) error

	// Query retrieves events matching the filter.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// Count returns the number of events matching the filter, ignoring pagination.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Export serializes the events matching the filter.
	Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error)

	// Purge removes events older than before and returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// HealthCheck probes the backing resource.
	HealthCheck(ctx context.Context) (bool, error)
}

// Initializer is implemented by stores that need setup before first use.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Destroyer is implemented by stores holding resources that must be released.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// AlertMatcher selects the events an alert rule fires on. Empty dimensions match anything.
type AlertMatcher struct {
	Categories []Category `json:"categories,omitempty"`
	Severities []Severity `json:"severities,omitempty"`
	Services   []string   `json:"services,omitempty"`
	EventTypes []string   `json:"eventTypes,omitempty"`
	Success    *bool      `json:"success,omitempty"`
}

// AlertRule produces an Alert whenever an accepted event matches it.
type AlertRule struct {
	Name            string        `json:"name" validate:"required"`
	Enabled         bool          `json:"enabled"`
	Filter          AlertMatcher  `json:"filter"`
	Level           AlertLevel    `json:"level" validate:"required,oneof=INFO WARNING ERROR CRITICAL"`
	MessageTemplate string        `json:"messageTemplate"`
	TimeWindow      time.Duration `json:"timeWindow,omitempty" validate:"gte=0"`
	Threshold       int           `json:"threshold,omitempty" validate:"gte=0"`
	SuppressionTime time.Duration `json:"suppressionTime,omitempty" validate:"gte=0"`
}

// Alert is a fired instance of an AlertRule.
type Alert struct {
	ID           string     `json:"id"`
	RuleName     string     `json:"ruleName"`
	Event        Event      `json:"event"`
	AlertTime    time.Time  `json:"alertTime"`
	Level        AlertLevel `json:"level"`
	Message      string     `json:"message"`
	Acknowledged bool       `json:"acknowledged"`
}

// AlertQuery narrows Manager.Alerts. Zero fields match anything.
type AlertQuery struct {
	ID           string
	RuleName     string
	Level        AlertLevel
	Acknowledged *bool
}
