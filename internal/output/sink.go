// Package output writes the append-only generated artifact of a job.
//
// The artifact is plain text:
//
//	# <job> - <language> output
//	# Generated: <RFC3339>
//
//	--- Unit 1 ---
//
//	<text>
//
//	[ERROR: Unit 2 failed after 3 retries - <message>]
package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackzampolin/tome/internal/progress"
)

// Sink appends unit results to a job's output file.
// A resumed run keeps appending; only Truncate and Compact rewrite content.
type Sink struct {
	path string
}

// Open returns a sink for path, creating the file with a header if it does
// not exist yet.
func Open(path, jobID, language string, now time.Time) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	switch {
	case errors.Is(err, fs.ErrExist):
		return &Sink{path: path}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	header := fmt.Sprintf("# %s - %s output\n# Generated: %s\n\n", jobID, language, now.UTC().Format(time.RFC3339))
	if _, err := f.WriteString(header); err != nil {
		return nil, fmt.Errorf("failed to write output header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync output file: %w", err)
	}
	return &Sink{path: path}, nil
}

// Path returns the artifact path.
func (s *Sink) Path() string {
	return s.path
}

// Append writes a successful unit result.
func (s *Sink) Append(unit int, text string) error {
	return s.append(formatEntry(Entry{Unit: unit, Text: text}))
}

// AppendError writes the marker for a unit that exhausted its retries.
func (s *Sink) AppendError(unit, retries int, msg string) error {
	return s.append(formatEntry(Entry{Unit: unit, Failed: true, Retries: retries, Error: msg}))
}

// Truncate cuts the artifact back to size bytes, dropping anything written
// after the last recorded unit outcome.
func (s *Sink) Truncate(size int64) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return fmt.Errorf("failed to truncate output: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync output: %w", err)
	}
	return f.Close()
}

// Compact atomically rewrites the artifact with one entry per unit in unit
// order, as chosen by Ordered. The header is kept.
func (s *Sink) Compact() error {
	header, entries, err := readFile(s.path)
	if err != nil {
		return err
	}
	var b strings.Builder
	if header = strings.TrimRight(header, "\n"); header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	for _, e := range Ordered(entries) {
		b.WriteString(formatEntry(e))
	}
	if err := progress.WriteFileAtomic(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite output: %w", err)
	}
	return nil
}

func (s *Sink) append(data string) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append output: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync output: %w", err)
	}
	return f.Close()
}

// Size returns the artifact size in bytes.
func (s *Sink) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Snapshot copies the artifact to dir as <job>_unit<label>_<timestamp>.txt
// and returns the backup path.
func (s *Sink) Snapshot(dir, jobID, label string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	dst := filepath.Join(dir, fmt.Sprintf("%s_unit%s_%s.txt", jobID, label, ts))

	src, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to open output for backup: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to copy backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

// Backups returns the snapshot files of a job in dir, oldest first.
func Backups(dir, jobID string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, jobID+"_unit*.txt"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func formatEntry(e Entry) string {
	if e.Failed {
		return fmt.Sprintf("\n\n%s\n\n", errorMarker(e.Unit, e.Retries, e.Error))
	}
	return fmt.Sprintf("\n\n%s\n\n%s\n\n", separator(e.Unit), strings.TrimSpace(e.Text))
}

func separator(unit int) string {
	return fmt.Sprintf("--- Unit %d ---", unit)
}

func errorMarker(unit, retries int, msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	return fmt.Sprintf("[ERROR: Unit %d failed after %d retries - %s]", unit, retries, msg)
}
