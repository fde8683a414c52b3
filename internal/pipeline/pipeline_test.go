// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/auditflow/internal/audit"
	"github.com/tomtom215/auditflow/internal/config"
	"github.com/tomtom215/auditflow/internal/masking"
)

// testAuditConfig returns the default policy with a long flush interval
// and the given sinks.
func testAuditConfig(sinks ...config.SinkConfig) config.AuditConfig {
	cfg := config.Default().Audit
	cfg.FlushInterval = time.Hour
	cfg.Sinks = sinks
	return cfg
}

func memorySink(name string) config.SinkConfig {
	return config.SinkConfig{Name: name, Type: config.SinkTypeMemory}
}

func newTestPipeline(t *testing.T, cfg config.AuditConfig) *audit.Manager {
	t.Helper()
	m, err := New(context.Background(), cfg, audit.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { m.Destroy(context.Background()) })
	return m
}

func TestNew_FansOutToConfiguredSinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	cfg := testAuditConfig(
		memorySink("primary"),
		config.SinkConfig{Name: "archive", Type: config.SinkTypeFile, File: config.FileSinkConfig{Path: path}},
	)
	m := newTestPipeline(t, cfg)

	if got := len(m.Stores()); got != 2 {
		t.Fatalf("len(Stores()) = %d, want 2", got)
	}
	if m.Stores()[0].Name() != "primary" {
		t.Errorf("first store = %s, want primary", m.Stores()[0].Name())
	}

	ctx := context.Background()
	if err := m.Log(ctx, audit.EventInput{EventType: "user.login", Category: audit.CategorySecurity, UserID: "alice"}); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	res := m.Flush(ctx)
	if res.Events != 1 || len(res.Failed) != 0 {
		t.Fatalf("Flush() = %+v", res)
	}

	events, err := m.Query(ctx, audit.Filter{})
	if err != nil || len(events) != 1 {
		t.Fatalf("Query() = %d events, %v", len(events), err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file sink: %v", err)
	}
	if !strings.Contains(string(data), events[0].ID) {
		t.Errorf("file sink missing event %s", events[0].ID)
	}
}

func TestNew_AlertRulesAndPolicy(t *testing.T) {
	cfg := testAuditConfig(memorySink("memory"))
	cfg.MinSeverity = "MEDIUM"
	cfg.AlertRules = []config.AlertRuleConfig{{
		Name:       "login-failures",
		Enabled:    true,
		Level:      "ERROR",
		Message:    "{{eventType}} by {{userId}}",
		EventTypes: []string{"auth.login_failed"},
	}}
	m := newTestPipeline(t, cfg)

	if p := m.Policy(); p.MinSeverity != audit.SeverityMedium || p.FlushInterval != time.Hour {
		t.Errorf("Policy() = %+v", p)
	}

	ctx := context.Background()
	_ = m.Log(ctx, audit.EventInput{EventType: "noise", Severity: audit.SeverityLow})
	_ = m.Log(ctx, audit.EventInput{EventType: "auth.login_failed", Severity: audit.SeverityHigh, UserID: "bob", Success: audit.Bool(false)})

	if n := m.QueueLength(); n != 1 {
		t.Errorf("QueueLength() = %d, want 1 (LOW filtered)", n)
	}
	alerts := m.Alerts(audit.AlertQuery{})
	if len(alerts) != 1 {
		t.Fatalf("len(Alerts()) = %d, want 1", len(alerts))
	}
	if alerts[0].Message != "auth.login_failed by bob" || alerts[0].Level != audit.AlertLevelError {
		t.Errorf("alert = %+v", alerts[0])
	}
}

func TestNew_MaskPatterns(t *testing.T) {
	cfg := testAuditConfig(memorySink("memory"))
	cfg.AsyncProcessing = false
	cfg.MaskPatterns = []string{"(?i)^internal_ref$"}
	m := newTestPipeline(t, cfg)

	ctx := context.Background()
	_ = m.Log(ctx, audit.EventInput{EventType: "doc.read", Metadata: map[string]any{"internal_ref": "ABCDEFGH", "page": "intro"}})

	events, _ := m.Query(ctx, audit.Filter{})
	if len(events) != 1 {
		t.Fatalf("Query() = %d events, want 1", len(events))
	}
	if events[0].Metadata["internal_ref"] == "ABCDEFGH" {
		t.Error("internal_ref was not masked")
	}
	if events[0].Metadata["page"] != "intro" {
		t.Errorf("page = %v, want unmasked", events[0].Metadata["page"])
	}
	if masking.Default().IsSensitiveField("internal_ref") {
		t.Error("configured pattern leaked into masking.Default()")
	}
}

func TestNew_MaskPatternsArePerPipeline(t *testing.T) {
	withPattern := testAuditConfig(memorySink("memory"))
	withPattern.AsyncProcessing = false
	withPattern.MaskPatterns = []string{"^tenant_ref$"}
	newTestPipeline(t, withPattern)

	plain := testAuditConfig(memorySink("memory"))
	plain.AsyncProcessing = false
	m := newTestPipeline(t, plain)

	ctx := context.Background()
	_ = m.Log(ctx, audit.EventInput{EventType: "doc.read", Metadata: map[string]any{"tenant_ref": "T-1234"}})

	events, _ := m.Query(ctx, audit.Filter{})
	if len(events) != 1 {
		t.Fatalf("Query() = %d events, want 1", len(events))
	}
	if got := events[0].Metadata["tenant_ref"]; got != "T-1234" {
		t.Errorf("tenant_ref = %v, want T-1234 (pattern from another pipeline applied)", got)
	}
}

func TestSinksWithPolicyDefaults(t *testing.T) {
	fileSink := config.SinkConfig{Name: "archive", Type: config.SinkTypeFile, File: config.FileSinkConfig{Path: "/tmp/a.log"}}

	tests := []struct {
		name         string
		compression  bool
		wantCompress bool
	}{
		{"policy compression on", true, true},
		{"policy compression off", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAuditConfig(memorySink("memory"), fileSink)
			cfg.Compression = tt.compression

			got := sinksWithPolicyDefaults(&cfg)
			if got[1].File.Compress != tt.wantCompress {
				t.Errorf("file sink Compress = %v, want %v", got[1].File.Compress, tt.wantCompress)
			}
			if cfg.Sinks[1].File.Compress {
				t.Error("caller's sink config was modified")
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.AuditConfig)
	}{
		{"zero batch size", func(c *config.AuditConfig) { c.BatchSize = 0 }},
		{"unknown sink type", func(c *config.AuditConfig) { c.Sinks[0].Type = "s3" }},
		{"bad alert level", func(c *config.AuditConfig) {
			c.AlertRules = []config.AlertRuleConfig{{Name: "r", Level: "LOUD"}}
		}},
		{"bad mask pattern", func(c *config.AuditConfig) { c.MaskPatterns = []string{"(open"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAuditConfig(memorySink("memory"))
			tt.mutate(&cfg)
			if m, err := New(context.Background(), cfg); err == nil {
				m.Destroy(context.Background())
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestNew_InitializeFailureReleasesStores(t *testing.T) {
	// A file sink under a regular file cannot create its directory.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testAuditConfig(config.SinkConfig{
		Name: "file",
		Type: config.SinkTypeFile,
		File: config.FileSinkConfig{Path: filepath.Join(blocker, "sub", "audit.log")},
	})

	if _, err := New(context.Background(), cfg, audit.WithLogger(zerolog.Nop())); err == nil {
		t.Error("New() error = nil, want initialize failure")
	}
}

func TestNewFileManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	m, err := NewFileManager(context.Background(), path, audit.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewFileManager() error = %v", err)
	}

	_ = m.Log(context.Background(), audit.EventInput{EventType: "config.change", Category: audit.CategorySystem})
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "config.change") {
		t.Errorf("file content = %q", data)
	}
}

func TestPolicy(t *testing.T) {
	cfg := config.Default().Audit
	cfg.Categories = []string{"SECURITY"}
	cfg.RetentionDays = 30
	cfg.DataMasking = false

	p := Policy(&cfg)
	if len(p.Categories) != 1 || p.Categories[0] != audit.CategorySecurity {
		t.Errorf("Categories = %v", p.Categories)
	}
	if p.RetentionDays != 30 || p.DataMasking || !p.Enabled || p.BatchSize != 100 {
		t.Errorf("Policy() = %+v", p)
	}
}

func TestAlertRules(t *testing.T) {
	rules := AlertRules([]config.AlertRuleConfig{{
		Name:            "r1",
		Enabled:         true,
		Level:           "CRITICAL",
		Categories:      []string{"SECURITY", "DATA"},
		Severities:      []string{"HIGH"},
		Services:        []string{"billing"},
		Success:         audit.Bool(false),
		Threshold:       3,
		TimeWindow:      time.Minute,
		SuppressionTime: 10 * time.Minute,
	}})

	if len(rules) != 1 {
		t.Fatalf("len(AlertRules()) = %d, want 1", len(rules))
	}
	r := rules[0]
	if r.Level != audit.AlertLevelCritical || r.Threshold != 3 || r.TimeWindow != time.Minute || r.SuppressionTime != 10*time.Minute {
		t.Errorf("rule = %+v", r)
	}
	if len(r.Filter.Categories) != 2 || r.Filter.Severities[0] != audit.SeverityHigh || r.Filter.Services[0] != "billing" {
		t.Errorf("Filter = %+v", r.Filter)
	}
	if r.Filter.Success == nil || *r.Filter.Success {
		t.Errorf("Filter.Success = %v, want false", r.Filter.Success)
	}
	if err := audit.ValidateAlertRule(&r); err != nil {
		t.Errorf("ValidateAlertRule() error = %v", err)
	}
}
