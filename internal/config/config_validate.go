// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package config

import (
	"fmt"

	"github.com/tomtom215/auditflow/internal/validation"
)

// Validate checks field constraints, then the rules that span fields.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.Audit.Validate(); err != nil {
		return err
	}

	return c.validateIngest()
}

// Validate checks an audit pipeline declaration. It is called by
// Config.Validate and by callers building a pipeline from a bare AuditConfig.
func (a *AuditConfig) Validate() error {
	if err := validation.ValidateStruct(a); err != nil {
		return err
	}

	if a.Enabled && len(a.Sinks) == 0 {
		return fmt.Errorf("audit.sinks: at least one sink is required when audit is enabled")
	}

	if err := a.validateSinks(); err != nil {
		return err
	}
	return a.validateAlertRules()
}

// validateSinks checks per-type requirements and name uniqueness.
func (a *AuditConfig) validateSinks() error {
	seen := make(map[string]bool, len(a.Sinks))
	for i := range a.Sinks {
		sink := &a.Sinks[i]
		if seen[sink.Name] {
			return fmt.Errorf("audit.sinks[%d]: duplicate sink name %q", i, sink.Name)
		}
		seen[sink.Name] = true

		if err := sink.validate(); err != nil {
			return fmt.Errorf("audit.sinks[%d] (%s): %w", i, sink.Name, err)
		}
	}
	return nil
}

func (s *SinkConfig) validate() error {
	switch s.Type {
	case SinkTypeFile:
		if s.File.Path == "" {
			return fmt.Errorf("file.path is required for file sinks")
		}
	case SinkTypeDatabase:
		if s.Database.Dialect == "postgres" && s.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres dialect")
		}
	case SinkTypeBadger:
		if s.Badger.Dir == "" && !s.Badger.InMemory {
			return fmt.Errorf("badger.dir is required unless badger.in_memory is set")
		}
	}
	return nil
}

// validateAlertRules checks rate settings and name uniqueness.
func (a *AuditConfig) validateAlertRules() error {
	seen := make(map[string]bool, len(a.AlertRules))
	for i := range a.AlertRules {
		rule := &a.AlertRules[i]
		if seen[rule.Name] {
			return fmt.Errorf("audit.alert_rules[%d]: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = true

		if rule.Threshold > 1 && rule.TimeWindow <= 0 {
			return fmt.Errorf("audit.alert_rules[%d] (%s): threshold %d requires time_window", i, rule.Name, rule.Threshold)
		}
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Enabled && c.Ingest.Source == "" {
		return fmt.Errorf("ingest.source is required when ingest is enabled (use - for stdin)")
	}
	return nil
}
