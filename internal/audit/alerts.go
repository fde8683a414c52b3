// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/auditflow/internal/metrics"
	"github.com/tomtom215/auditflow/internal/validation"
)

// ruleState tracks rate limiting for one rule.
type ruleState struct {
	hits      []time.Time
	lastFired time.Time
}

// alertEngine holds the rule registry and the fired alert list.
type alertEngine struct {
	mu     sync.RWMutex
	rules  []AlertRule
	state  map[string]*ruleState
	alerts []Alert

	triggered metrics.Counter
	logger    zerolog.Logger
}

func newAlertEngine(logger zerolog.Logger, triggered metrics.Counter) *alertEngine {
	return &alertEngine{
		state:     make(map[string]*ruleState),
		triggered: triggered,
		logger:    logger,
	}
}

// ValidateAlertRule checks rule fields. Errors wrap ErrInvalidAlertRule.
func ValidateAlertRule(rule *AlertRule) error {
	if err := validation.ValidateStruct(rule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAlertRule, err)
	}
	for _, c := range rule.Filter.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidAlertRule, c)
		}
	}
	for _, s := range rule.Filter.Severities {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlertRule, s)
		}
	}
	if rule.Threshold > 1 && rule.TimeWindow <= 0 {
		return fmt.Errorf("%w: threshold %d needs a time window", ErrInvalidAlertRule, rule.Threshold)
	}
	return nil
}

// add registers or replaces a rule by name.
func (e *alertEngine) add(rule AlertRule) error {
	if err := ValidateAlertRule(&rule); err != nil {
		return err
	}
	rule.Filter = cloneMatcher(rule.Filter)

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.rules {
		if e.rules[i].Name == rule.Name {
			e.rules[i] = rule
			delete(e.state, rule.Name)
			return nil
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

func (e *alertEngine) remove(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.rules {
		if e.rules[i].Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			delete(e.state, name)
			return true
		}
	}
	return false
}

func (e *alertEngine) list() []AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]AlertRule, len(e.rules))
	for i := range e.rules {
		out[i] = e.rules[i]
		out[i].Filter = cloneMatcher(e.rules[i].Filter)
	}
	return out
}

func cloneMatcher(m AlertMatcher) AlertMatcher {
	m.Categories = append([]Category(nil), m.Categories...)
	m.Severities = append([]Severity(nil), m.Severities...)
	m.Services = append([]string(nil), m.Services...)
	m.EventTypes = append([]string(nil), m.EventTypes...)
	if m.Success != nil {
		m.Success = Bool(*m.Success)
	}
	return m
}

// evaluate matches event against every enabled rule and records fired alerts.
// It returns the alerts fired for this event.
func (e *alertEngine) evaluate(event *Event, now time.Time) []Alert {
	e.mu.Lock()
	var fired []Alert
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Enabled || !matchesRule(&rule.Filter, event) {
			continue
		}
		if !e.admit(rule, now) {
			continue
		}
		alert := Alert{
			ID:        generateAlertID(now),
			RuleName:  rule.Name,
			Event:     event.Clone(),
			AlertTime: now,
			Level:     rule.Level,
			Message:   renderMessage(rule, event),
		}
		e.alerts = append(e.alerts, alert)
		fired = append(fired, alert)
	}
	e.mu.Unlock()

	for i := range fired {
		e.triggered.Add(1)
		e.logAlert(&fired[i])
	}
	return fired
}

// admit applies threshold and suppression. Callers hold e.mu.
func (e *alertEngine) admit(rule *AlertRule, now time.Time) bool {
	if rule.SuppressionTime <= 0 && (rule.Threshold <= 1 || rule.TimeWindow <= 0) {
		return true
	}

	st, ok := e.state[rule.Name]
	if !ok {
		st = &ruleState{}
		e.state[rule.Name] = st
	}

	if rule.SuppressionTime > 0 && !st.lastFired.IsZero() && now.Sub(st.lastFired) < rule.SuppressionTime {
		return false
	}

	if rule.Threshold > 1 && rule.TimeWindow > 0 {
		cutoff := now.Add(-rule.TimeWindow)
		kept := st.hits[:0]
		for _, hit := range st.hits {
			if hit.After(cutoff) {
				kept = append(kept, hit)
			}
		}
		st.hits = append(kept, now)
		if len(st.hits) < rule.Threshold {
			return false
		}
		st.hits = st.hits[:0]
	}

	st.lastFired = now
	return true
}

func (e *alertEngine) logAlert(a *Alert) {
	var ev *zerolog.Event
	switch a.Level {
	case AlertLevelCritical, AlertLevelError:
		ev = e.logger.Error()
	case AlertLevelWarning:
		ev = e.logger.Warn()
	default:
		ev = e.logger.Info()
	}
	ev.Str("alert_id", a.ID).
		Str("rule", a.RuleName).
		Str("level", string(a.Level)).
		Str("event_id", a.Event.ID).
		Str("event_type", a.Event.EventType).
		Msg(a.Message)
}

func (e *alertEngine) query(q AlertQuery) []Alert {
	e.mu.RLock()
	out := make([]Alert, 0, len(e.alerts))
	for i := len(e.alerts) - 1; i >= 0; i-- {
		a := &e.alerts[i]
		if q.ID != "" && a.ID != q.ID {
			continue
		}
		if q.RuleName != "" && a.RuleName != q.RuleName {
			continue
		}
		if q.Level != "" && a.Level != q.Level {
			continue
		}
		if q.Acknowledged != nil && a.Acknowledged != *q.Acknowledged {
			continue
		}
		c := *a
		c.Event = a.Event.Clone()
		out = append(out, c)
	}
	e.mu.RUnlock()

	// most recent first; later-fired alerts win ties
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AlertTime.After(out[j].AlertTime)
	})
	return out
}

func (e *alertEngine) acknowledge(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.alerts {
		if e.alerts[i].ID == id {
			e.alerts[i].Acknowledged = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
}

func (e *alertEngine) count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.alerts)
}

// matchesRule reports whether every populated dimension of m accepts event.
func matchesRule(m *AlertMatcher, event *Event) bool {
	if len(m.Categories) > 0 {
		found := false
		for _, c := range m.Categories {
			if c == event.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(m.Severities) > 0 {
		found := false
		for _, s := range m.Severities {
			if s == event.Severity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(m.Services) > 0 && !containsString(m.Services, event.Service) {
		return false
	}
	if len(m.EventTypes) > 0 && !containsString(m.EventTypes, event.EventType) {
		return false
	}
	if m.Success != nil && *m.Success != event.Success {
		return false
	}
	return true
}

// renderMessage substitutes {{placeholder}} tokens in the rule template.
func renderMessage(rule *AlertRule, event *Event) string {
	tmpl := rule.MessageTemplate
	if tmpl == "" {
		tmpl = "Alert {{ruleName}}: {{eventType}} on {{resource}} by {{userId}}"
	}
	r := strings.NewReplacer(
		"{{eventType}}", event.EventType,
		"{{resource}}", event.Resource,
		"{{userId}}", event.UserID,
		"{{service}}", event.Service,
		"{{timestamp}}", event.Timestamp.UTC().Format(time.RFC3339),
		"{{category}}", string(event.Category),
		"{{severity}}", string(event.Severity),
		"{{operation}}", event.Operation,
		"{{ruleName}}", rule.Name,
	)
	return r.Replace(tmpl)
}
