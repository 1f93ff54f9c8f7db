package progress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/jackzampolin/tome/internal/chunk"
)

const (
	stateFileName  = "state.json"
	unitsFileName  = "units.json"
	sourceFileName = "source.txt"
)

// FileStore keeps each job in its own directory under root.
// Every write goes to a temp file in the same directory, is fsynced and
// then renamed over the target, so readers see the old or the new record
// and never a partial one.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create jobs directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Root returns the directory holding job records.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) jobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, jobID string) (*JobState, error) {
	raw, err := s.read(ctx, jobID, stateFileName)
	if err != nil {
		return nil, err
	}
	st, err := DecodeState(raw)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	if st.JobID != jobID {
		return nil, fmt.Errorf("job %s: %w: record belongs to %q", jobID, ErrStateCorruption, st.JobID)
	}
	return st, nil
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, st *JobState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeState(st)
	if err != nil {
		return err
	}
	return s.write(st.JobID, stateFileName, data)
}

// LoadUnits implements Store.
func (s *FileStore) LoadUnits(ctx context.Context, jobID string) ([]chunk.Unit, error) {
	raw, err := s.read(ctx, jobID, unitsFileName)
	if err != nil {
		return nil, err
	}
	units, err := DecodeUnits(raw)
	if err != nil {
		return nil, fmt.Errorf("job %s units: %w", jobID, err)
	}
	return units, nil
}

// SaveUnits implements Store.
func (s *FileStore) SaveUnits(ctx context.Context, jobID string, units []chunk.Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeUnits(units)
	if err != nil {
		return fmt.Errorf("failed to encode units: %w", err)
	}
	return s.write(jobID, unitsFileName, data)
}

// SaveSource implements Store.
func (s *FileStore) SaveSource(ctx context.Context, jobID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(jobID, sourceFileName, []byte(text))
}

// LoadSource implements Store.
func (s *FileStore) LoadSource(ctx context.Context, jobID string) (string, error) {
	raw, err := s.read(ctx, jobID, sourceFileName)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), stateFileName)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.jobDir(jobID)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}

func (s *FileStore) read(ctx context.Context, jobID, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(s.jobDir(jobID), name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s for job %s: %w", name, jobID, err)
	}
	return raw, nil
}

func (s *FileStore) write(jobID, name string, data []byte) error {
	dir := s.jobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}
	if err := WriteFileAtomic(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s for job %s: %w", name, jobID, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data using write-temp, fsync, rename.
// The parent directory is synced afterwards so the rename itself is durable.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems do not support syncing directories.
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, errors.ErrUnsupported) {
		return err
	}
	return nil
}
