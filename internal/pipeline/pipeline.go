// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package pipeline

import (
	"context"
	"fmt"

	"github.com/tomtom215/auditflow/internal/audit"
	"github.com/tomtom215/auditflow/internal/config"
	"github.com/tomtom215/auditflow/internal/logging"
	"github.com/tomtom215/auditflow/internal/masking"
)

// New builds and initializes a Manager from a declarative configuration.
// Options are applied after the configured ones, so callers can override
// the logger, metrics collector or clock, or append stores.
//
// On any failure the stores opened so far are released.
func New(ctx context.Context, cfg config.AuditConfig, opts ...audit.Option) (*audit.Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audit configuration: %w", err)
	}

	masker, err := buildMasker(cfg.MaskPatterns)
	if err != nil {
		return nil, err
	}

	stores, err := BuildStores(sinksWithPolicyDefaults(&cfg))
	if err != nil {
		return nil, err
	}

	base := []audit.Option{
		audit.WithPolicy(Policy(&cfg)),
		audit.WithMasker(masker),
		audit.WithStores(stores...),
		audit.WithAlertRules(AlertRules(cfg.AlertRules)...),
	}
	m, err := audit.NewManager(append(base, opts...)...)
	if err != nil {
		destroyStores(ctx, stores)
		return nil, fmt.Errorf("create audit manager: %w", err)
	}

	if err := m.Initialize(ctx); err != nil {
		m.Destroy(ctx)
		return nil, err
	}

	logger := logging.WithComponent("pipeline")
	logger.Info().
		Int("sinks", len(stores)).
		Int("alert_rules", len(cfg.AlertRules)).
		Bool("enabled", cfg.Enabled).
		Msg("Audit pipeline ready")
	return m, nil
}

// NewFileManager builds a pipeline with the default policy and a single
// size-rotated file sink at path.
func NewFileManager(ctx context.Context, path string, opts ...audit.Option) (*audit.Manager, error) {
	cfg := config.Default().Audit
	cfg.Sinks = []config.SinkConfig{{
		Name: "file",
		Type: config.SinkTypeFile,
		File: config.FileSinkConfig{Path: path, Rotation: string(audit.RotationSize)},
	}}
	return New(ctx, cfg, opts...)
}

// NewDatabaseManager builds a pipeline with the default policy and a single
// SQL sink. An empty dialect selects DuckDB.
func NewDatabaseManager(ctx context.Context, dialect, dsn string, opts ...audit.Option) (*audit.Manager, error) {
	cfg := config.Default().Audit
	cfg.Sinks = []config.SinkConfig{{
		Name:     "database",
		Type:     config.SinkTypeDatabase,
		Database: config.DatabaseSinkConfig{Dialect: dialect, DSN: dsn},
	}}
	return New(ctx, cfg, opts...)
}

// sinksWithPolicyDefaults applies pipeline-wide settings to the declared
// sinks without touching the caller's slice. Compression turns on rotated
// file compression for every file sink.
func sinksWithPolicyDefaults(cfg *config.AuditConfig) []config.SinkConfig {
	sinks := append([]config.SinkConfig(nil), cfg.Sinks...)
	if cfg.Compression {
		for i := range sinks {
			if sinks[i].Type == config.SinkTypeFile {
				sinks[i].File.Compress = true
			}
		}
	}
	return sinks
}

// buildMasker returns a masker owned by one pipeline, so configured
// patterns never reach the shared default masker.
func buildMasker(patterns []string) (*masking.Masker, error) {
	masker := masking.New()
	for _, p := range patterns {
		if err := masker.AddPattern(p); err != nil {
			return nil, fmt.Errorf("mask pattern %q: %w", p, err)
		}
	}
	return masker, nil
}

// Policy converts the policy fields of cfg.
func Policy(cfg *config.AuditConfig) audit.Policy {
	categories := make([]audit.Category, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		categories = append(categories, audit.Category(c))
	}

	return audit.Policy{
		Enabled:          cfg.Enabled,
		Categories:       categories,
		MinSeverity:      audit.Severity(cfg.MinSeverity),
		RetentionDays:    cfg.RetentionDays,
		RealTimeAlerting: cfg.RealTimeAlerting,
		AsyncProcessing:  cfg.AsyncProcessing,
		BatchSize:        cfg.BatchSize,
		FlushInterval:    cfg.FlushInterval,
		DataMasking:      cfg.DataMasking,
		Compression:      cfg.Compression,
	}
}

// AlertRules converts declared alert rules.
func AlertRules(rules []config.AlertRuleConfig) []audit.AlertRule {
	out := make([]audit.AlertRule, 0, len(rules))
	for i := range rules {
		r := &rules[i]
		rule := audit.AlertRule{
			Name:            r.Name,
			Enabled:         r.Enabled,
			Level:           audit.AlertLevel(r.Level),
			MessageTemplate: r.Message,
			TimeWindow:      r.TimeWindow,
			Threshold:       r.Threshold,
			SuppressionTime: r.SuppressionTime,
			Filter: audit.AlertMatcher{
				Services:   append([]string(nil), r.Services...),
				EventTypes: append([]string(nil), r.EventTypes...),
				Success:    r.Success,
			},
		}
		for _, c := range r.Categories {
			rule.Filter.Categories = append(rule.Filter.Categories, audit.Category(c))
		}
		for _, s := range r.Severities {
			rule.Filter.Severities = append(rule.Filter.Severities, audit.Severity(s))
		}
		out = append(out, rule)
	}
	return out
}
