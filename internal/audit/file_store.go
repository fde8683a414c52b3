// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package audit

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/tomtom215/auditflow/internal/logging"
)

// RotationPolicy selects when a FileStore starts a new file.
type RotationPolicy string

const (
	RotationSize    RotationPolicy = "size"
	RotationDaily   RotationPolicy = "daily"
	RotationWeekly  RotationPolicy = "weekly"
	RotationMonthly RotationPolicy = "monthly"
	RotationNone    RotationPolicy = "none"
)

// DefaultMaxFileSize is the size threshold used when MaxSize is unset.
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// maxLineSize bounds a single JSON line during read-back.
const maxLineSize = 4 * 1024 * 1024

const gzipExt = ".gz"

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	Name       string
	Path       string
	MaxSize    int64
	Rotation   RotationPolicy
	Compress   bool
	MaxBackups int

	// Now overrides time.Now for rotation decisions.
	Now func() time.Time
	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// FileStore persists events as JSON lines in a rotating file.
type FileStore struct {
	cfg    FileStoreConfig
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	file     *os.File
	size     int64
	openedAt time.Time
	closed   bool
}

// NewFileStore creates a file store. The file is opened by Initialize or on
// first write.
func NewFileStore(cfg FileStoreConfig) *FileStore {
	if cfg.Name == "" {
		cfg.Name = "file"
	}
	if cfg.Rotation == "" {
		cfg.Rotation = RotationSize
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxFileSize
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := logging.WithComponent("audit")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &FileStore{
		cfg:    cfg,
		logger: logger.With().Str("store", cfg.Name).Str("path", cfg.Path).Logger(),
		now:    now,
	}
}

// Name returns the registry key of the store.
func (s *FileStore) Name() string {
	return s.cfg.Name
}

// Path returns the active file path.
func (s *FileStore) Path() string {
	return s.cfg.Path
}

// Initialize creates the directory and opens the active file.
func (s *FileStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	return s.openLocked()
}

func (s *FileStore) openLocked() error {
	if s.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o750); err != nil {
		return fmt.Errorf("create audit log directory: %w", err)
	}

	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat audit log file: %w", err)
	}

	s.file = f
	s.size = info.Size()
	s.openedAt = info.ModTime()
	if s.size == 0 {
		s.openedAt = s.now()
	}
	return nil
}

// Store appends events as JSON lines, rotating first if needed.
func (s *FileStore) Store(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for i := range events {
		line, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("encode event %s: %w", events[i].ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := s.openLocked(); err != nil {
		return err
	}

	now := s.now()
	if s.shouldRotate(int64(buf.Len()), now) {
		s.rotateLocked(now)
	}

	n, err := s.file.Write(buf.Bytes())
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("write audit log file: %w", err)
	}
	return nil
}

// shouldRotate decides rotation for a pending write. Empty files never rotate.
func (s *FileStore) shouldRotate(pending int64, now time.Time) bool {
	if s.size == 0 {
		return false
	}
	switch s.cfg.Rotation {
	case RotationSize:
		return s.size+pending > s.cfg.MaxSize
	case RotationDaily:
		y1, m1, d1 := s.openedAt.Date()
		y2, m2, d2 := now.Date()
		return y1 != y2 || m1 != m2 || d1 != d2
	case RotationWeekly:
		y1, w1 := s.openedAt.ISOWeek()
		y2, w2 := now.ISOWeek()
		return y1 != y2 || w1 != w2
	case RotationMonthly:
		return s.openedAt.Year() != now.Year() || s.openedAt.Month() != now.Month()
	default:
		return false
	}
}

// rotatedName returns <path>.<ISO8601 timestamp with ':' and '.' replaced by '-'>.
func rotatedName(path string, at time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format(isoMillis))
	return path + "." + stamp
}

// rotateLocked moves the active file aside and opens a fresh one. Failures are
// logged; writing continues on whatever file could be opened.
func (s *FileStore) rotateLocked(now time.Time) {
	if err := s.file.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("close audit log before rotation failed")
	}
	s.file = nil

	target := rotatedName(s.cfg.Path, now)
	for i := 1; fileExists(target) || fileExists(target+gzipExt); i++ {
		target = rotatedName(s.cfg.Path, now) + "-" + strconv.Itoa(i)
	}

	if err := os.Rename(s.cfg.Path, target); err != nil {
		s.logger.Error().Err(err).Str("target", target).Msg("audit log rotation failed")
	} else {
		if s.cfg.Compress {
			if err := compressFile(target); err != nil {
				s.logger.Error().Err(err).Str("file", target).Msg("audit log compression failed")
			}
		}
		s.pruneBackupsLocked()
		s.logger.Info().Str("rotated", target).Msg("audit log rotated")
	}

	if err := s.openLocked(); err != nil {
		s.logger.Error().Err(err).Msg("reopen audit log after rotation failed")
		return
	}
	s.openedAt = now
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// compressFile gzips path to path.gz and removes the original.
func compressFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+gzipExt, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path + gzipExt)
		}
	}()

	zw := gzip.NewWriter(dst)
	if _, err = io.Copy(zw, src); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// rotatedFiles lists rotated siblings of the active file, oldest first.
func (s *FileStore) rotatedFiles() ([]string, error) {
	dir := filepath.Dir(s.cfg.Path)
	prefix := filepath.Base(s.cfg.Path) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	type rotated struct {
		path    string
		modTime time.Time
	}
	var files []rotated
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, rotated{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	out := make([]string, len(files))
	for i := range files {
		out[i] = files[i].path
	}
	return out, nil
}

func (s *FileStore) pruneBackupsLocked() {
	if s.cfg.MaxBackups <= 0 {
		return
	}
	files, err := s.rotatedFiles()
	if err != nil {
		s.logger.Warn().Err(err).Msg("list rotated audit logs failed")
		return
	}
	for len(files) > s.cfg.MaxBackups {
		if err := os.Remove(files[0]); err != nil {
			s.logger.Warn().Err(err).Str("file", files[0]).Msg("remove old audit log failed")
		}
		files = files[1:]
	}
}

// readFile decodes every well-formed line of path. Malformed lines are skipped.
func readFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, gzipExt) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil
		}
		defer zr.Close()
		r = zr
	}

	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	// a truncated trailing record is treated like any other malformed line
	return events, nil
}

// readAllLocked loads events from rotated files then the active file.
func (s *FileStore) readAllLocked() ([]Event, error) {
	files, err := s.rotatedFiles()
	if err != nil {
		return nil, fmt.Errorf("list audit log files: %w", err)
	}
	files = append(files, s.cfg.Path)

	var all []Event
	for _, path := range files {
		events, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		all = append(all, events...)
	}
	return all, nil
}

// Query retrieves events matching the filter across all files.
func (s *FileStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, err := s.readAllLocked()
	if err != nil {
		return nil, err
	}
	return ApplyFilter(events, filter), nil
}

// Count returns the number of events matching the filter.
func (s *FileStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, err := s.readAllLocked()
	if err != nil {
		return 0, err
	}
	var n int64
	for i := range events {
		if MatchFilter(&events[i], &filter) {
			n++
		}
	}
	return n, nil
}

// Export serializes the events matching the filter.
func (s *FileStore) Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error) {
	events, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return EncodeEvents(events, format)
}

// Purge rewrites every file without events older than before. Rotated files
// left empty are deleted.
func (s *FileStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	rotated, err := s.rotatedFiles()
	if err != nil {
		return 0, fmt.Errorf("list audit log files: %w", err)
	}

	var deleted int64
	for _, path := range rotated {
		n, err := purgeFile(path, before, true)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("purge %s: %w", filepath.Base(path), err)
		}
	}

	// the active file is rewritten with its handle closed
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close audit log before purge failed")
		}
		s.file = nil
	}
	n, err := purgeFile(s.cfg.Path, before, false)
	deleted += n
	if err != nil {
		return deleted, fmt.Errorf("purge %s: %w", filepath.Base(s.cfg.Path), err)
	}

	openedAt := s.openedAt
	if err := s.openLocked(); err != nil {
		return deleted, err
	}
	if s.size > 0 {
		s.openedAt = openedAt
	}

	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Time("before", before).Msg("audit log purged")
	}
	return deleted, nil
}

// purgeFile drops events older than before from path. When removeEmpty is set
// a file left without events is deleted instead of rewritten.
func purgeFile(path string, before time.Time, removeEmpty bool) (int64, error) {
	events, err := readFile(path)
	if err != nil {
		return 0, err
	}

	kept := events[:0]
	var deleted int64
	for i := range events {
		if events[i].Timestamp.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, events[i])
	}
	if deleted == 0 {
		return 0, nil
	}

	if len(kept) == 0 && removeEmpty {
		return deleted, os.Remove(path)
	}
	return deleted, rewriteFile(path, kept)
}

// rewriteFile atomically replaces path with events, gzip-compressed when the
// name ends in .gz.
func rewriteFile(path string, events []Event) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var zw *gzip.Writer
	if strings.HasSuffix(path, gzipExt) {
		zw = gzip.NewWriter(f)
		w = zw
	}

	bw := bufio.NewWriter(w)
	for i := range events {
		line, err := json.Marshal(&events[i])
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return err
		}
		_, _ = bw.Write(line)
		_ = bw.WriteByte('\n')
	}

	err = bw.Flush()
	if zw != nil && err == nil {
		err = zw.Close()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// HealthCheck reports whether the log directory is writable.
func (s *FileStore) HealthCheck(ctx context.Context) (bool, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return false, ErrStoreClosed
	}

	dir := filepath.Dir(s.cfg.Path)
	f, err := os.CreateTemp(dir, ".auditflow-health-*")
	if err != nil {
		return false, fmt.Errorf("audit log directory not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true, nil
}

// Destroy closes the active file. Later writes return ErrStoreClosed.
func (s *FileStore) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("close audit log file: %w", err)
	}
	return nil
}
