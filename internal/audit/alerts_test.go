// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source for WithClock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestValidateAlertRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    AlertRule
		wantErr bool
	}{
		{"valid", AlertRule{Name: "r", Level: AlertLevelWarning}, false},
		{"missing name", AlertRule{Level: AlertLevelWarning}, true},
		{"missing level", AlertRule{Name: "r"}, true},
		{"unknown level", AlertRule{Name: "r", Level: "PANIC"}, true},
		{"negative threshold", AlertRule{Name: "r", Level: AlertLevelInfo, Threshold: -1}, true},
		{"threshold without window", AlertRule{Name: "r", Level: AlertLevelInfo, Threshold: 3}, true},
		{"threshold with window", AlertRule{Name: "r", Level: AlertLevelInfo, Threshold: 3, TimeWindow: time.Minute}, false},
		{"unknown category", AlertRule{Name: "r", Level: AlertLevelInfo, Filter: AlertMatcher{Categories: []Category{"X"}}}, true},
		{"unknown severity", AlertRule{Name: "r", Level: AlertLevelInfo, Filter: AlertMatcher{Severities: []Severity{"X"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAlertRule(&tt.rule)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAlertRule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAlertRule) {
				t.Errorf("error %v does not wrap ErrInvalidAlertRule", err)
			}
		})
	}
}

func TestMatchesRule(t *testing.T) {
	event := Event{
		EventType: "auth.failed",
		Category:  CategorySecurity,
		Severity:  SeverityHigh,
		Service:   "api",
		Success:   false,
	}

	tests := []struct {
		name    string
		matcher AlertMatcher
		want    bool
	}{
		{"empty matches all", AlertMatcher{}, true},
		{"category hit", AlertMatcher{Categories: []Category{CategoryData, CategorySecurity}}, true},
		{"category miss", AlertMatcher{Categories: []Category{CategoryData}}, false},
		{"severity miss", AlertMatcher{Severities: []Severity{SeverityCritical}}, false},
		{"service hit", AlertMatcher{Services: []string{"api"}}, true},
		{"event type miss", AlertMatcher{EventTypes: []string{"auth.login"}}, false},
		{"success false", AlertMatcher{Success: Bool(false)}, true},
		{"success true", AlertMatcher{Success: Bool(true)}, false},
		{"all dimensions", AlertMatcher{
			Categories: []Category{CategorySecurity},
			Severities: []Severity{SeverityHigh},
			Services:   []string{"api"},
			EventTypes: []string{"auth.failed"},
			Success:    Bool(false),
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesRule(&tt.matcher, &event); got != tt.want {
				t.Errorf("matchesRule() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderMessage(t *testing.T) {
	event := Event{
		EventType: "data.delete",
		Resource:  "invoice",
		UserID:    "u42",
		Service:   "billing",
		Category:  CategoryData,
		Severity:  SeverityHigh,
		Operation: "delete",
		Timestamp: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"default", "", "Alert bulk-delete: data.delete on invoice by u42"},
		{"all placeholders",
			"{{ruleName}}|{{eventType}}|{{resource}}|{{userId}}|{{service}}|{{timestamp}}|{{category}}|{{severity}}|{{operation}}",
			"bulk-delete|data.delete|invoice|u42|billing|2026-02-03T04:05:06Z|DATA|HIGH|delete"},
		{"unknown placeholder kept", "{{nope}} {{userId}}", "{{nope}} u42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := AlertRule{Name: "bulk-delete", MessageTemplate: tt.template}
			if got := renderMessage(&rule, &event); got != tt.want {
				t.Errorf("renderMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAlerting_Threshold(t *testing.T) {
	clock := newFakeClock()
	rule := AlertRule{
		Name:       "brute-force",
		Enabled:    true,
		Level:      AlertLevelCritical,
		Filter:     AlertMatcher{EventTypes: []string{"auth.login_failed"}},
		Threshold:  3,
		TimeWindow: time.Minute,
	}
	m := newTestManager(t, WithAlertRules(rule), WithClock(clock.Now))
	ctx := context.Background()
	failed := EventInput{EventType: "auth.login_failed", Category: CategorySecurity}

	_ = m.Log(ctx, failed)
	clock.Advance(10 * time.Second)
	_ = m.Log(ctx, failed)
	if n := len(m.Alerts(AlertQuery{})); n != 0 {
		t.Fatalf("alerts = %d before threshold, want 0", n)
	}

	clock.Advance(10 * time.Second)
	_ = m.Log(ctx, failed)
	if n := len(m.Alerts(AlertQuery{})); n != 1 {
		t.Fatalf("alerts = %d at threshold, want 1", n)
	}

	// hits reset after firing and old hits expire from the window
	clock.Advance(2 * time.Minute)
	_ = m.Log(ctx, failed)
	_ = m.Log(ctx, failed)
	if n := len(m.Alerts(AlertQuery{})); n != 1 {
		t.Errorf("alerts = %d, want still 1", n)
	}
}

func TestAlerting_Suppression(t *testing.T) {
	clock := newFakeClock()
	rule := AlertRule{
		Name:            "errors",
		Enabled:         true,
		Level:           AlertLevelWarning,
		Filter:          AlertMatcher{Success: Bool(false)},
		SuppressionTime: 5 * time.Minute,
	}
	m := newTestManager(t, WithAlertRules(rule), WithClock(clock.Now))
	ctx := context.Background()
	failure := EventInput{Success: Bool(false)}

	_ = m.Log(ctx, failure)
	clock.Advance(time.Minute)
	_ = m.Log(ctx, failure)
	if n := len(m.Alerts(AlertQuery{})); n != 1 {
		t.Fatalf("alerts = %d within suppression, want 1", n)
	}

	clock.Advance(5 * time.Minute)
	_ = m.Log(ctx, failure)
	alerts := m.Alerts(AlertQuery{})
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d after suppression, want 2", len(alerts))
	}
	if !alerts[0].AlertTime.After(alerts[1].AlertTime) {
		t.Error("alerts not ordered most recent first")
	}
}

func TestAlerting_DisabledRule(t *testing.T) {
	rule := AlertRule{Name: "off", Enabled: false, Level: AlertLevelInfo}
	m := newTestManager(t, WithAlertRules(rule))

	_ = m.Log(context.Background(), EventInput{})
	if n := len(m.Alerts(AlertQuery{})); n != 0 {
		t.Errorf("alerts = %d for disabled rule, want 0", n)
	}
}

func TestAlerting_RuleRegistry(t *testing.T) {
	m := newTestManager(t)

	if err := m.AddAlertRule(AlertRule{Name: "a", Enabled: true, Level: AlertLevelInfo}); err != nil {
		t.Fatalf("AddAlertRule() error = %v", err)
	}
	if err := m.AddAlertRule(AlertRule{Name: "a", Enabled: true, Level: AlertLevelError}); err != nil {
		t.Fatalf("AddAlertRule(replace) error = %v", err)
	}
	rules := m.AlertRules()
	if len(rules) != 1 || rules[0].Level != AlertLevelError {
		t.Fatalf("AlertRules() = %+v, want replaced rule", rules)
	}

	if err := m.AddAlertRule(AlertRule{Name: "bad"}); !errors.Is(err, ErrInvalidAlertRule) {
		t.Errorf("AddAlertRule(invalid) error = %v", err)
	}
	if !m.RemoveAlertRule("a") || m.RemoveAlertRule("a") {
		t.Error("RemoveAlertRule() did not remove exactly once")
	}
	if len(m.AlertRules()) != 0 {
		t.Error("rule still registered")
	}
}

func TestAlerting_QueryFilters(t *testing.T) {
	rules := []AlertRule{
		{Name: "info", Enabled: true, Level: AlertLevelInfo},
		{Name: "crit", Enabled: true, Level: AlertLevelCritical, Filter: AlertMatcher{Severities: []Severity{SeverityCritical}}},
	}
	m := newTestManager(t, WithAlertRules(rules...))
	ctx := context.Background()

	_ = m.Log(ctx, EventInput{Severity: SeverityLow})
	_ = m.Log(ctx, EventInput{Severity: SeverityCritical})

	if n := len(m.Alerts(AlertQuery{})); n != 3 {
		t.Fatalf("alerts = %d, want 3", n)
	}
	crit := m.Alerts(AlertQuery{Level: AlertLevelCritical})
	if len(crit) != 1 || crit[0].RuleName != "crit" {
		t.Errorf("critical alerts = %+v", crit)
	}
	if n := len(m.Alerts(AlertQuery{RuleName: "info"})); n != 2 {
		t.Errorf("info alerts = %d, want 2", n)
	}
	byID := m.Alerts(AlertQuery{ID: crit[0].ID})
	if len(byID) != 1 || byID[0].ID != crit[0].ID {
		t.Errorf("alerts by id = %+v", byID)
	}
}

func TestAlerting_RuleFilterCopied(t *testing.T) {
	cats := []Category{CategorySecurity}
	m := newTestManager(t)
	_ = m.AddAlertRule(AlertRule{Name: "r", Enabled: true, Level: AlertLevelInfo, Filter: AlertMatcher{Categories: cats}})

	cats[0] = CategoryData
	if got := m.AlertRules()[0].Filter.Categories[0]; got != CategorySecurity {
		t.Errorf("rule filter aliased caller slice: %s", got)
	}
}
