package joblog

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpen_TeesRecords(t *testing.T) {
	dir := t.TempDir()
	pathFor := func(day time.Time) string {
		return filepath.Join(dir, "logs", "book_"+day.Format(time.DateOnly)+".log")
	}

	var base bytes.Buffer
	l, err := Open(pathFor, slog.NewTextHandler(&base, nil), slog.LevelDebug)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	logger := l.Logger().With("job_id", "book")
	logger.Info("unit generated", "unit", 3)
	logger.Debug("debug only in file")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(base.String(), "unit generated") {
		t.Errorf("base handler missing record: %q", base.String())
	}
	if strings.Contains(base.String(), "debug only") {
		t.Error("base handler should keep its own level")
	}

	entries, err := Read(l.Path())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	e := entries[0]
	if e.Message != "unit generated" || e.Level != "INFO" {
		t.Errorf("entry = %+v", e)
	}
	if e.Attrs["job_id"] != "book" || e.Attrs["unit"] != float64(3) {
		t.Errorf("attrs = %v", e.Attrs)
	}
	if e.Time.IsZero() {
		t.Error("time should be parsed")
	}
}

func TestOpen_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.log")
	pathFor := func(time.Time) string { return path }

	for i := 0; i < 2; i++ {
		l, err := Open(pathFor, nil, slog.LevelInfo)
		if err != nil {
			t.Fatal(err)
		}
		l.Logger().Info("run", "n", i)
		l.Close()
	}

	entries, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestDailyFile_Rotates(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	df := &dailyFile{
		pathFor: func(d time.Time) string { return filepath.Join(dir, d.Format(time.DateOnly)+".log") },
		now:     func() time.Time { return day },
	}
	if err := df.rotate(); err != nil {
		t.Fatal(err)
	}
	if _, err := df.Write([]byte("a\n")); err != nil {
		t.Fatal(err)
	}
	day = day.Add(2 * time.Minute)
	if _, err := df.Write([]byte("b\n")); err != nil {
		t.Fatal(err)
	}
	df.Close()

	for name, want := range map[string]string{"2026-03-01.log": "a\n", "2026-03-02.log": "b\n"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestRead(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		entries, err := Read(filepath.Join(t.TempDir(), "none.log"))
		if err != nil || entries != nil {
			t.Errorf("Read(missing) = %v, %v", entries, err)
		}
	})

	t.Run("skips garbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x.log")
		data := `{"time":"2026-01-01T00:00:00Z","level":"WARN","msg":"a"}` + "\nnot json\n"
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		entries, err := Read(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Level != "WARN" || entries[0].Attrs != nil {
			t.Errorf("entries = %+v", entries)
		}
	})
}
