// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package config

import (
	"time"

	"github.com/tomtom215/auditflow/internal/logging"
)

// Sink types accepted in AuditConfig.Sinks.
const (
	SinkTypeFile     = "file"
	SinkTypeDatabase = "database"
	SinkTypeBadger   = "badger"
	SinkTypeMemory   = "memory"
)

// Config holds all auditd configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Audit      AuditConfig      `koanf:"audit"`
	Server     ServerConfig     `koanf:"server"`
	Retention  RetentionConfig  `koanf:"retention"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`

	// Service is attached to every log line.
	// Default: auditflow
	Service string `koanf:"service"`
}

// ToLogging converts to the logging package configuration.
func (c LoggingConfig) ToLogging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Caller = c.Caller
	cfg.Service = c.Service
	return cfg
}

// AuditConfig declares a complete pipeline: the policy, its sinks and its
// alert rules.
type AuditConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Categories       []string      `koanf:"categories" validate:"dive,oneof=SECURITY DATA SYSTEM BUSINESS"`
	MinSeverity      string        `koanf:"min_severity" validate:"oneof=LOW MEDIUM HIGH CRITICAL"`
	RetentionDays    int           `koanf:"retention_days" validate:"gte=0"`
	RealTimeAlerting bool          `koanf:"real_time_alerting"`
	AsyncProcessing  bool          `koanf:"async_processing"`
	BatchSize        int           `koanf:"batch_size" validate:"gte=1"`
	FlushInterval    time.Duration `koanf:"flush_interval" validate:"gt=0"`
	DataMasking      bool          `koanf:"data_masking"`

	// Compression enables rotated-file compression on every file sink.
	Compression bool `koanf:"compression"`

	// MaskPatterns are extra sensitive field name expressions added to the
	// built-in masker list.
	MaskPatterns []string `koanf:"mask_patterns" validate:"dive,regexp"`

	Sinks      []SinkConfig      `koanf:"sinks" validate:"dive"`
	AlertRules []AlertRuleConfig `koanf:"alert_rules" validate:"dive"`
}

// SinkConfig declares one store. Only the section matching Type is read.
type SinkConfig struct {
	Name string `koanf:"name" validate:"required"`
	Type string `koanf:"type" validate:"required,oneof=file database badger memory"`

	File     FileSinkConfig     `koanf:"file"`
	Database DatabaseSinkConfig `koanf:"database"`
	Badger   BadgerSinkConfig   `koanf:"badger"`
	Memory   MemorySinkConfig   `koanf:"memory"`
	Breaker  BreakerConfig      `koanf:"breaker"`
}

// FileSinkConfig configures a JSON-lines file store.
type FileSinkConfig struct {
	Path       string `koanf:"path"`
	MaxSize    int64  `koanf:"max_size" validate:"gte=0"`
	Rotation   string `koanf:"rotation" validate:"omitempty,oneof=size daily weekly monthly none"`
	Compress   bool   `koanf:"compress"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
}

// DatabaseSinkConfig configures a SQL store.
type DatabaseSinkConfig struct {
	// Dialect is duckdb or postgres.
	// Default: duckdb
	Dialect string `koanf:"dialect" validate:"omitempty,oneof=duckdb postgres"`

	// DSN is the driver connection string. For DuckDB a file path, or
	// empty for an in-memory database.
	DSN string `koanf:"dsn"`

	Table        string `koanf:"table"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"gte=0"`
}

// BadgerSinkConfig configures an embedded BadgerDB store.
type BadgerSinkConfig struct {
	Dir      string `koanf:"dir"`
	InMemory bool   `koanf:"in_memory"`
}

// MemorySinkConfig configures an in-process store.
type MemorySinkConfig struct {
	// MaxEvents bounds the store. Zero uses the store default.
	MaxEvents int `koanf:"max_events" validate:"gte=0"`
}

// BreakerConfig wraps a sink's writes in a circuit breaker when enabled.
type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	Timeout          time.Duration `koanf:"timeout" validate:"gte=0"`
}

// AlertRuleConfig declares one alert rule.
type AlertRuleConfig struct {
	Name            string        `koanf:"name" validate:"required"`
	Enabled         bool          `koanf:"enabled"`
	Level           string        `koanf:"level" validate:"required,oneof=INFO WARNING ERROR CRITICAL"`
	Message         string        `koanf:"message"`
	Categories      []string      `koanf:"categories" validate:"dive,oneof=SECURITY DATA SYSTEM BUSINESS"`
	Severities      []string      `koanf:"severities" validate:"dive,oneof=LOW MEDIUM HIGH CRITICAL"`
	Services        []string      `koanf:"services"`
	EventTypes      []string      `koanf:"event_types"`
	Success         *bool         `koanf:"success"`
	TimeWindow      time.Duration `koanf:"time_window" validate:"gte=0"`
	Threshold       int           `koanf:"threshold" validate:"gte=0"`
	SuppressionTime time.Duration `koanf:"suppression_time" validate:"gte=0"`
}

// ServerConfig holds the admin HTTP endpoint configuration.
type ServerConfig struct {
	Enabled bool `koanf:"enabled"`

	// Addr is the listen address.
	// Default: :9464
	Addr string `koanf:"addr" validate:"listenaddr"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// HealthRateLimit caps /healthz requests per client IP per minute.
	// Zero disables the cap. Default: 120
	HealthRateLimit int `koanf:"health_rate_limit" validate:"gte=0"`
}

// RetentionConfig holds the retention sweeper configuration.
type RetentionConfig struct {
	Enabled bool `koanf:"enabled"`

	// Interval between sweeps.
	// Default: 1h
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// IngestConfig holds the NDJSON ingest configuration.
type IngestConfig struct {
	Enabled bool `koanf:"enabled"`

	// Source is a file path, or "-" for stdin.
	// Default: -
	Source string `koanf:"source"`

	// RateLimit caps accepted lines per second. Zero means unlimited.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`

	// Burst is the number of lines accepted at once above RateLimit.
	// Zero uses one second's worth of RateLimit.
	Burst int `koanf:"burst" validate:"gte=0"`
}

// SupervisorConfig holds supervisor tree configuration.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gte=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gte=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gte=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}
