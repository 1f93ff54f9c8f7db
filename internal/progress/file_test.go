package progress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/tome/internal/chunk"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	if _, err := s.Load(ctx, "gita"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := NewJobState("gita", 4, chunk.SourceFingerprint("text"), now)
	st.MarkCompleted(1)
	st.MarkCompleted(2)
	st.MarkFailed(3)
	st.AddRetries(3, 3)
	st.FlagQuality(2, []string{"too_short"})
	st.OutputSize = 512

	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "gita")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(got.Completed, []int{1, 2}) || !slices.Equal(got.Failed, []int{3}) {
		t.Errorf("sets = %v / %v", got.Completed, got.Failed)
	}
	if got.RetryCounts[3] != 3 || got.OutputSize != 512 {
		t.Errorf("retry counts = %v, output size = %d", got.RetryCounts, got.OutputSize)
	}
	if len(got.QualityFlags) != 1 || got.QualityFlags[0].Unit != 2 {
		t.Errorf("quality flags = %v", got.QualityFlags)
	}
	if !got.CreatedAt.Equal(now) || got.CompletedAt != nil {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.CompletedAt)
	}

	// No temp files are left behind.
	entries, _ := os.ReadDir(filepath.Join(s.Root(), "gita"))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestFileStore_RejectsInvalidState(t *testing.T) {
	s := newTestFileStore(t)
	st := NewJobState("gita", 2, "fp", time.Now())
	st.Completed = []int{1}
	st.Failed = []int{1}

	if err := s.Save(context.Background(), st); err == nil {
		t.Fatal("expected Save to reject overlapping sets")
	}
	if _, err := s.Load(context.Background(), "gita"); !errors.Is(err, ErrNotFound) {
		t.Errorf("invalid state should not have been written, got %v", err)
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated", `{"job_id": "gita", "total_un`},
		{"missing fields", `{"job_id": "gita"}`},
		{"wrong types", `{"job_id":"gita","total_units":"three","completed":[],"failed":[],"retry_counts":{},"quality_flags":[],"source_fingerprint":"x","created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}`},
		{"overlap", `{"job_id":"gita","total_units":3,"completed":[1],"failed":[1],"retry_counts":{},"quality_flags":[],"source_fingerprint":"x","created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}`},
		{"out of range", `{"job_id":"gita","total_units":1,"completed":[2],"failed":[],"retry_counts":{},"quality_flags":[],"source_fingerprint":"x","created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}`},
		{"other job", `{"job_id":"other","total_units":1,"completed":[],"failed":[],"retry_counts":{},"quality_flags":[],"source_fingerprint":"x","created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestFileStore(t)
			dir := filepath.Join(s.Root(), "gita")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, stateFileName), []byte(tt.raw), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Load(context.Background(), "gita"); !errors.Is(err, ErrStateCorruption) {
				t.Errorf("expected ErrStateCorruption, got %v", err)
			}
		})
	}
}

func TestFileStore_Units(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)
	units := chunk.Split("One. Two. Three.", 5)

	if err := s.SaveUnits(ctx, "gita", units); err != nil {
		t.Fatalf("SaveUnits: %v", err)
	}
	got, err := s.LoadUnits(ctx, "gita")
	if err != nil {
		t.Fatalf("LoadUnits: %v", err)
	}
	if !slices.Equal(got, units) {
		t.Errorf("units = %+v, want %+v", got, units)
	}

	// Tampered text no longer matches its fingerprint.
	raw, _ := os.ReadFile(filepath.Join(s.Root(), "gita", unitsFileName))
	tampered := strings.Replace(string(raw), "Two.", "Deux.", 1)
	if err := os.WriteFile(filepath.Join(s.Root(), "gita", unitsFileName), []byte(tampered), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadUnits(ctx, "gita"); !errors.Is(err, ErrStateCorruption) {
		t.Errorf("expected ErrStateCorruption, got %v", err)
	}
}

func TestFileStore_SourceListDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	for _, id := range []string{"b", "a"} {
		if err := s.Save(ctx, NewJobState(id, 0, "fp", time.Now())); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	// A directory without a state record is not a job.
	if err := s.SaveSource(ctx, "c", "only source"); err != nil {
		t.Fatalf("SaveSource: %v", err)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Errorf("List = %v", ids)
	}

	text, err := s.LoadSource(ctx, "c")
	if err != nil || text != "only source" {
		t.Errorf("LoadSource = %q, %v", text, err)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted job to be gone, got %v", err)
	}
	if err := s.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	for _, content := range []string{"first", "second"} {
		if err := WriteFileAtomic(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFileAtomic: %v", err)
		}
	}
	got, _ := os.ReadFile(path)
	if string(got) != "second" {
		t.Errorf("content = %q", got)
	}
}

func TestMemoryStore_ErrorInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.ErrAfterNSaves = 2

	st := NewJobState("job", 3, "fp", time.Now())
	for i := 0; i < 2; i++ {
		if err := m.Save(ctx, st); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if err := m.Save(ctx, st); !errors.Is(err, ErrInjected) {
		t.Errorf("expected ErrInjected, got %v", err)
	}
	if len(m.Saves()) != 2 {
		t.Errorf("expected 2 recorded saves, got %d", len(m.Saves()))
	}

	m.PutRaw("bad", []byte(`{}`))
	if _, err := m.Load(ctx, "bad"); !errors.Is(err, ErrStateCorruption) {
		t.Errorf("expected ErrStateCorruption, got %v", err)
	}
}
