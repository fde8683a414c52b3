// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"sort"
	"strings"
)

// MatchFilter returns true if the event matches all filter criteria.
// Pagination and ordering fields are ignored.
//
//nolint:gocyclo // complexity inherent to multi-criteria filter matching
func MatchFilter(event *Event, filter *Filter) bool {
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}

	if len(filter.UserIDs) > 0 && !containsString(filter.UserIDs, event.UserID) {
		return false
	}
	if len(filter.EventTypes) > 0 && !containsString(filter.EventTypes, event.EventType) {
		return false
	}
	if len(filter.Services) > 0 && !containsString(filter.Services, event.Service) {
		return false
	}
	if len(filter.Resources) > 0 && !containsString(filter.Resources, event.Resource) {
		return false
	}

	if len(filter.Categories) > 0 {
		found := false
		for _, c := range filter.Categories {
			if event.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(filter.Severities) > 0 {
		found := false
		for _, sev := range filter.Severities {
			if event.Severity == sev {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.Success != nil && event.Success != *filter.Success {
		return false
	}

	if filter.Search != "" && !matchesSearch(event, strings.ToLower(filter.Search)) {
		return false
	}

	return true
}

// searchFields lists the event fields covered by Filter.Search.
func searchFields(event *Event) []string {
	return []string{
		event.EventType,
		event.Operation,
		event.Resource,
		event.ResourceID,
		event.UserID,
		event.Service,
		event.ErrorMessage,
	}
}

func matchesSearch(event *Event, needle string) bool {
	for _, field := range searchFields(event) {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ApplyFilter filters, sorts and paginates events in memory. The input slice
// is not modified.
func ApplyFilter(events []Event, filter Filter) []Event {
	matched := make([]Event, 0, len(events))
	for i := range events {
		if MatchFilter(&events[i], &filter) {
			matched = append(matched, events[i])
		}
	}

	SortEvents(matched, filter)
	return Paginate(matched, filter)
}

// SortEvents orders events in place by the filter's sort field and direction.
// Ties keep their original relative order.
func SortEvents(events []Event, filter Filter) {
	field := filter.orderBy()
	desc := filter.descending()

	sort.SliceStable(events, func(i, j int) bool {
		c := compareEvents(&events[i], &events[j], field)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareEvents(a, b *Event, field string) int {
	switch field {
	case SortFieldEventType:
		return strings.Compare(a.EventType, b.EventType)
	case SortFieldCategory:
		return strings.Compare(string(a.Category), string(b.Category))
	case SortFieldSeverity:
		return a.Severity.Rank() - b.Severity.Rank()
	case SortFieldOperation:
		return strings.Compare(a.Operation, b.Operation)
	case SortFieldResource:
		return strings.Compare(a.Resource, b.Resource)
	case SortFieldUserID:
		return strings.Compare(a.UserID, b.UserID)
	case SortFieldService:
		return strings.Compare(a.Service, b.Service)
	default:
		return a.Timestamp.Compare(b.Timestamp)
	}
}

// Paginate applies Offset and Limit to an already sorted slice.
func Paginate(events []Event, filter Filter) []Event {
	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			return []Event{}
		}
		events = events[filter.Offset:]
	}
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events
}
