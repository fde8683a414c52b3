// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"github.com/tomtom215/auditflow/internal/audit"
	"github.com/tomtom215/auditflow/internal/logging"
	"github.com/tomtom215/auditflow/internal/metrics"
)

// maxIngestLine bounds a single NDJSON line.
const maxIngestLine = 1024 * 1024

// Ingest line results recorded in audit_ingest_lines_total.
const (
	IngestAccepted = "accepted"
	IngestRejected = "rejected"
	IngestFailed   = "failed"
)

// EventSink is satisfied by *audit.Manager.
type EventSink interface {
	LogSync(in audit.EventInput) error
}

// SourceOpener opens the NDJSON stream. It is called on every (re)start.
type SourceOpener func() (io.ReadCloser, error)

// OpenSource returns an opener for a file path, or for stdin when path is "-".
func OpenSource(path string) SourceOpener {
	if path == "-" {
		return func() (io.ReadCloser, error) {
			return io.NopCloser(os.Stdin), nil
		}
	}
	return func() (io.ReadCloser, error) {
		return os.Open(path) //nolint:gosec // path comes from operator config
	}
}

// ingestLine is the accepted NDJSON shape. It matches the persisted event
// JSON, with every field optional.
type ingestLine struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	EventType       string         `json:"eventType"`
	Category        audit.Category `json:"category"`
	Severity        audit.Severity `json:"severity"`
	Operation       string         `json:"operation"`
	Resource        string         `json:"resource"`
	ResourceID      string         `json:"resourceId"`
	UserID          string         `json:"userId"`
	UserAgent       string         `json:"userAgent"`
	IPAddress       string         `json:"ipAddress"`
	SessionID       string         `json:"sessionId"`
	Success         *bool          `json:"success"`
	ErrorCode       string         `json:"errorCode"`
	ErrorMessage    string         `json:"errorMessage"`
	Metadata        map[string]any `json:"metadata"`
	Service         string         `json:"service"`
	RequestID       string         `json:"requestId"`
	TraceID         string         `json:"traceId"`
	RetentionPolicy string         `json:"retentionPolicy"`
	Classification  string         `json:"classification"`
}

// ParseIngestLine decodes one NDJSON line into an event input.
func ParseIngestLine(line []byte) (audit.EventInput, error) {
	var l ingestLine
	if err := json.Unmarshal(line, &l); err != nil {
		return audit.EventInput{}, fmt.Errorf("decode event: %w", err)
	}
	return audit.EventInput{
		ID:              l.ID,
		Timestamp:       l.Timestamp,
		EventType:       l.EventType,
		Category:        l.Category,
		Severity:        l.Severity,
		Operation:       l.Operation,
		Resource:        l.Resource,
		ResourceID:      l.ResourceID,
		UserID:          l.UserID,
		UserAgent:       l.UserAgent,
		IPAddress:       l.IPAddress,
		SessionID:       l.SessionID,
		Success:         l.Success,
		ErrorCode:       l.ErrorCode,
		ErrorMessage:    l.ErrorMessage,
		Metadata:        l.Metadata,
		Service:         l.Service,
		RequestID:       l.RequestID,
		TraceID:         l.TraceID,
		RetentionPolicy: l.RetentionPolicy,
		Classification:  l.Classification,
	}, nil
}

// IngestStats counts lines by result.
type IngestStats struct {
	Accepted int
	Rejected int
	Failed   int
}

// IngestService reads newline-delimited JSON events and hands them to the
// audit manager without blocking on store I/O.
//
// Blank lines are skipped, undecodable lines are logged and counted as
// rejected. An optional rate limit throttles reads so a flood on stdin
// cannot outrun the sinks. When the stream ends the service idles until
// shutdown so the supervisor does not replay the source.
//
//	svc := services.NewIngestService(manager, services.OpenSource("-"))
//	tree.AddIngestService(svc)
type IngestService struct {
	sink    EventSink
	open    SourceOpener
	limiter *rate.Limiter
	name    string
	logger  zerolog.Logger
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithIngestRateLimit caps accepted lines per second. A burst below one
// uses one second's worth of perSecond. A non-positive perSecond leaves
// ingest unthrottled.
func WithIngestRateLimit(perSecond float64, burst int) IngestOption {
	return func(s *IngestService) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = int(perSecond)
			if burst < 1 {
				burst = 1
			}
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewIngestService creates an ingest service.
func NewIngestService(sink EventSink, open SourceOpener, opts ...IngestOption) *IngestService {
	s := &IngestService{
		sink:   sink,
		open:   open,
		name:   "ndjson-ingest",
		logger: logging.WithComponent("ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve implements suture.Service.
func (s *IngestService) Serve(ctx context.Context) error {
	rc, err := s.open()
	if err != nil {
		return fmt.Errorf("open ingest source: %w", err)
	}

	type outcome struct {
		stats IngestStats
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		stats, err := s.Consume(ctx, rc)
		done <- outcome{stats, err}
	}()

	select {
	case <-ctx.Done():
		// Unblocks a pending read on files and pipes.
		_ = rc.Close()
		return ctx.Err()

	case res := <-done:
		_ = rc.Close()
		if errors.Is(res.err, audit.ErrManagerDestroyed) {
			return suture.ErrDoNotRestart
		}
		if res.err != nil {
			return fmt.Errorf("ingest failed: %w", res.err)
		}
		s.logger.Info().
			Int("accepted", res.stats.Accepted).
			Int("rejected", res.stats.Rejected).
			Int("failed", res.stats.Failed).
			Msg("Ingest source exhausted")

		<-ctx.Done()
		return ctx.Err()
	}
}

// Consume reads r to EOF. It stops early when ctx is canceled, when the
// stream fails, or when the manager has been destroyed.
func (s *IngestService) Consume(ctx context.Context, r io.Reader) (IngestStats, error) {
	var stats IngestStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxIngestLine)

	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		lineNo++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return stats, err
			}
		}

		in, err := ParseIngestLine(line)
		if err != nil {
			stats.Rejected++
			metrics.RecordIngestLine(IngestRejected)
			s.logger.Warn().Err(err).Int("line", lineNo).Msg("Rejected ingest line")
			continue
		}

		if err := s.sink.LogSync(in); err != nil {
			if errors.Is(err, audit.ErrManagerDestroyed) {
				return stats, err
			}
			stats.Failed++
			metrics.RecordIngestLine(IngestFailed)
			s.logger.Warn().Err(err).Int("line", lineNo).Msg("Failed to record ingested event")
			continue
		}
		stats.Accepted++
		metrics.RecordIngestLine(IngestAccepted)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return stats, err
	}
	return stats, nil
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *IngestService) String() string {
	return s.name
}
