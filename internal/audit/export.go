// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// isoMillis renders timestamps the way the event wire format does.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// csvHeader is the fixed column set of the CSV export.
var csvHeader = []string{
	"id", "timestamp", "eventType", "category", "severity", "operation", "resource",
	"resourceId", "userId", "userAgent", "ipAddress", "sessionId", "success",
	"errorCode", "errorMessage", "service", "requestId", "traceId",
	"retentionPolicy", "classification",
}

// exportFields returns the event's values in csvHeader order.
func exportFields(e *Event) []string {
	return []string{
		e.ID,
		e.Timestamp.UTC().Format(isoMillis),
		e.EventType,
		string(e.Category),
		string(e.Severity),
		e.Operation,
		e.Resource,
		e.ResourceID,
		e.UserID,
		e.UserAgent,
		e.IPAddress,
		e.SessionID,
		strconv.FormatBool(e.Success),
		e.ErrorCode,
		e.ErrorMessage,
		e.Service,
		e.RequestID,
		e.TraceID,
		e.RetentionPolicy,
		e.Classification,
	}
}

// EncodeEvents serializes events in the requested format. Every store delegates
// here so exports are byte-identical across sinks.
func EncodeEvents(events []Event, format ExportFormat) ([]byte, error) {
	switch ExportFormat(strings.ToLower(string(format))) {
	case FormatJSON, "":
		return encodeJSON(events)
	case FormatCSV:
		return encodeCSV(events)
	case FormatXML:
		return encodeXML(events), nil
	case FormatCEF:
		return NewCEFExporter().Export(events), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func encodeJSON(events []Event) ([]byte, error) {
	if events == nil {
		events = []Event{}
	}
	return json.MarshalIndent(events, "", "  ")
}

func encodeCSV(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i := range events {
		if err := w.Write(exportFields(&events[i])); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", events[i].ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeXML(events []Event) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<auditEvents>\n")
	for i := range events {
		b.WriteString("  <event>\n")
		values := exportFields(&events[i])
		for col, name := range csvHeader {
			// optional fields are omitted when empty
			if values[col] == "" {
				continue
			}
			b.WriteString("    <" + name + ">" + cdata(values[col]) + "</" + name + ">\n")
		}
		if len(events[i].Metadata) > 0 {
			if data, err := json.Marshal(events[i].Metadata); err == nil {
				b.WriteString("    <metadata>" + cdata(string(data)) + "</metadata>\n")
			}
		}
		b.WriteString("  </event>\n")
	}
	b.WriteString("</auditEvents>\n")
	return []byte(b.String())
}

// cdata wraps s in a CDATA section, splitting any embedded terminator.
func cdata(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}

// CEFExporter exports events in Common Event Format (for SIEM integration).
type CEFExporter struct {
	DeviceVendor  string
	DeviceProduct string
	DeviceVersion string
}

// NewCEFExporter creates a new CEF exporter with defaults.
func NewCEFExporter() *CEFExporter {
	return &CEFExporter{
		DeviceVendor:  "Auditflow",
		DeviceProduct: "AuditPipeline",
		DeviceVersion: "1.0",
	}
}

// Export exports events to CEF format, one line per event.
// CEF Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(events []Event) []byte {
	lines := make([]string, 0, len(events))

	for idx := range events {
		event := &events[idx]
		line := fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
			e.escape(e.DeviceVendor),
			e.escape(e.DeviceProduct),
			e.escape(e.DeviceVersion),
			e.escape(event.EventType),
			e.escape(event.Operation+" "+event.Resource),
			e.cefSeverity(event.Severity),
			e.buildExtension(event),
		)
		lines = append(lines, line)
	}

	return []byte(strings.Join(lines, "\n"))
}

// cefSeverity maps our severity to CEF severity (0-10).
func (e *CEFExporter) cefSeverity(severity Severity) int {
	switch severity {
	case SeverityLow:
		return 3
	case SeverityMedium:
		return 5
	case SeverityHigh:
		return 8
	case SeverityCritical:
		return 10
	default:
		return 0
	}
}

// buildExtension builds the CEF extension string.
func (e *CEFExporter) buildExtension(event *Event) string {
	parts := []string{fmt.Sprintf("rt=%d", event.Timestamp.UnixMilli())}

	if event.UserID != "" {
		parts = append(parts, "suid="+e.escape(event.UserID))
	}
	if event.IPAddress != "" {
		parts = append(parts, "src="+e.escape(event.IPAddress))
	}
	if event.ResourceID != "" {
		parts = append(parts, "duid="+e.escape(event.ResourceID))
	}

	parts = append(parts, "act="+e.escape(event.Operation))
	parts = append(parts, "cat="+e.escape(string(event.Category)))
	if event.Success {
		parts = append(parts, "outcome=success")
	} else {
		parts = append(parts, "outcome=failure")
	}

	if event.RequestID != "" {
		parts = append(parts, "externalId="+e.escape(event.RequestID))
	}
	parts = append(parts, "dvchost="+e.escape(event.Service))

	return strings.Join(parts, " ")
}

// escape escapes special characters for CEF format.
func (e *CEFExporter) escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
