// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"testing"
	"time"
)

var filterBase = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func filterFixture() []Event {
	return []Event{
		{ID: "1", Timestamp: filterBase, EventType: "user.login", Category: CategorySecurity, Severity: SeverityLow, Operation: "login", Resource: "session", UserID: "alice", Service: "api", Success: true},
		{ID: "2", Timestamp: filterBase.Add(time.Hour), EventType: "user.login", Category: CategorySecurity, Severity: SeverityHigh, Operation: "login", Resource: "session", UserID: "bob", Service: "api", Success: false, ErrorMessage: "Bad Password"},
		{ID: "3", Timestamp: filterBase.Add(2 * time.Hour), EventType: "data.update", Category: CategoryData, Severity: SeverityMedium, Operation: "update", Resource: "invoice", ResourceID: "INV-9", UserID: "alice", Service: "billing", Success: true},
		{ID: "4", Timestamp: filterBase.Add(3 * time.Hour), EventType: "system.start", Category: CategorySystem, Severity: SeverityCritical, Operation: "start", Resource: "service", Service: "worker", Success: true},
	}
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i := range events {
		out[i] = events[i].ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMatchFilter(t *testing.T) {
	start := filterBase.Add(30 * time.Minute)
	end := filterBase.Add(2 * time.Hour)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty", Filter{}, []string{"1", "2", "3", "4"}},
		{"time range inclusive", Filter{StartTime: &start, EndTime: &end}, []string{"2", "3"}},
		{"user", Filter{UserIDs: []string{"alice"}}, []string{"1", "3"}},
		{"event types", Filter{EventTypes: []string{"data.update", "system.start"}}, []string{"3", "4"}},
		{"category", Filter{Categories: []Category{CategorySecurity}}, []string{"1", "2"}},
		{"severity", Filter{Severities: []Severity{SeverityCritical, SeverityMedium}}, []string{"3", "4"}},
		{"service", Filter{Services: []string{"billing"}}, []string{"3"}},
		{"resource", Filter{Resources: []string{"session"}}, []string{"1", "2"}},
		{"success false", Filter{Success: Bool(false)}, []string{"2"}},
		{"search case-insensitive", Filter{Search: "PASSWORD"}, []string{"2"}},
		{"search resource id", Filter{Search: "inv-9"}, []string{"3"}},
		{"combined", Filter{UserIDs: []string{"alice"}, Categories: []Category{CategoryData}}, []string{"3"}},
		{"no match", Filter{UserIDs: []string{"carol"}}, []string{}},
	}

	events := filterFixture()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for i := range events {
				if MatchFilter(&events[i], &tt.filter) {
					got = append(got, events[i].ID)
				}
			}
			if !equalIDs(got, tt.want) {
				t.Errorf("MatchFilter() matched %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyFilter_SortAndPaginate(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"default newest first", Filter{}, []string{"4", "3", "2", "1"}},
		{"timestamp asc", Filter{OrderDirection: SortAsc}, []string{"1", "2", "3", "4"}},
		{"direction case-insensitive", Filter{OrderDirection: "ASC"}, []string{"1", "2", "3", "4"}},
		{"severity desc", Filter{OrderBy: SortFieldSeverity}, []string{"4", "2", "3", "1"}},
		{"severity asc", Filter{OrderBy: SortFieldSeverity, OrderDirection: SortAsc}, []string{"1", "3", "2", "4"}},
		{"service asc stable", Filter{OrderBy: SortFieldService, OrderDirection: SortAsc}, []string{"1", "2", "3", "4"}},
		{"unknown field falls back", Filter{OrderBy: "nope", OrderDirection: SortAsc}, []string{"1", "2", "3", "4"}},
		{"limit", Filter{Limit: 2}, []string{"4", "3"}},
		{"offset", Filter{Offset: 1, Limit: 2}, []string{"3", "2"}},
		{"offset past end", Filter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(ApplyFilter(filterFixture(), tt.filter))
			if !equalIDs(got, tt.want) {
				t.Errorf("ApplyFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyFilter_DoesNotModifyInput(t *testing.T) {
	events := filterFixture()
	_ = ApplyFilter(events, Filter{OrderDirection: SortDesc})
	if got := ids(events); !equalIDs(got, []string{"1", "2", "3", "4"}) {
		t.Errorf("input reordered to %v", got)
	}
}

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s does not rank below %s", order[i-1], order[i])
		}
	}
	if Severity("BOGUS").Valid() {
		t.Error("unknown severity reported valid")
	}
}
