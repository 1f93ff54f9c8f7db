// Package joblog tees a job's log records into a per-job, per-day JSON-lines
// file so a run can be inspected after the process exits.
package joblog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PathFunc returns the log file for a given day.
type PathFunc func(day time.Time) string

// Log is an open per-job log.
type Log struct {
	file   *dailyFile
	logger *slog.Logger
}

// Open starts a job log. Records sent to Logger go to both base and the job's
// file for the current day. A nil base writes only to the file.
func Open(pathFor PathFunc, base slog.Handler, level slog.Leveler) (*Log, error) {
	df := &dailyFile{pathFor: pathFor, now: time.Now}
	if err := df.rotate(); err != nil {
		return nil, err
	}
	fileHandler := slog.NewJSONHandler(df, &slog.HandlerOptions{Level: level})

	var h slog.Handler = fileHandler
	if base != nil {
		h = fanout{fileHandler, base}
	}
	return &Log{file: df, logger: slog.New(h)}, nil
}

// Logger returns the job's logger.
func (l *Log) Logger() *slog.Logger {
	return l.logger
}

// Path returns the file currently being written.
func (l *Log) Path() string {
	l.file.mu.Lock()
	defer l.file.mu.Unlock()
	return l.file.path
}

// Close flushes and closes the file.
func (l *Log) Close() error {
	return l.file.Close()
}

// dailyFile reopens its target when the calendar day changes.
type dailyFile struct {
	mu      sync.Mutex
	pathFor PathFunc
	now     func() time.Time
	day     string
	path    string
	f       *os.File
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.now().Format(time.DateOnly) != d.day {
		if err := d.rotateLocked(); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

func (d *dailyFile) rotate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotateLocked()
}

func (d *dailyFile) rotateLocked() error {
	now := d.now()
	path := d.pathFor(now)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open job log: %w", err)
	}
	if d.f != nil {
		d.f.Close()
	}
	d.f, d.path, d.day = f, path, now.Format(time.DateOnly)
	return nil
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// fanout dispatches every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// Entry is one parsed log line.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Read parses a job log file. A missing file yields no entries.
// Lines that are not valid JSON are skipped.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open job log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var raw map[string]any
		if err := json.Unmarshal(sc.Bytes(), &raw); err != nil {
			continue
		}
		e := Entry{Attrs: map[string]any{}}
		for k, v := range raw {
			switch k {
			case slog.TimeKey:
				if s, ok := v.(string); ok {
					e.Time, _ = time.Parse(time.RFC3339Nano, s)
				}
			case slog.LevelKey:
				e.Level, _ = v.(string)
			case slog.MessageKey:
				e.Message, _ = v.(string)
			default:
				e.Attrs[k] = v
			}
		}
		if len(e.Attrs) == 0 {
			e.Attrs = nil
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job log: %w", err)
	}
	return entries, nil
}
