package home

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-tome")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-tome" {
			t.Errorf("expected path /tmp/test-tome, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-tome")
	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-tome/config.yaml"},
		{"CallsDBPath", dir.CallsDBPath(), "/tmp/test-tome/calls.db"},
		{"JobDir", dir.JobDir("gita"), "/tmp/test-tome/jobs/gita"},
		{"OutputPath", dir.OutputPath("gita"), "/tmp/test-tome/outputs/gita.txt"},
		{"JobPidPath", dir.JobPidPath("gita"), "/tmp/test-tome/run/gita.pid"},
		{"BackupsDir", dir.BackupsDir(), "/tmp/test-tome/backups"},
		{"JobLogPath", dir.JobLogPath("gita", day), "/tmp/test-tome/logs/gita_2024-03-09.log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	tomeDir := filepath.Join(tmpDir, "tome-test")

	dir, err := New(tomeDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
	for _, sub := range []string{dir.JobsDir(), dir.OutputsDir(), dir.BackupsDir(), dir.LogsDir(), dir.RunDir()} {
		if _, err := os.Stat(sub); os.IsNotExist(err) {
			t.Errorf("%s should exist after EnsureExists", sub)
		}
	}

	// Idempotent
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("second EnsureExists failed: %v", err)
	}
}

func TestDir_ConfigExists(t *testing.T) {
	dir, _ := New(t.TempDir())

	if dir.ConfigExists() {
		t.Error("config should not exist yet")
	}
	if err := os.WriteFile(dir.ConfigPath(), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if !dir.ConfigExists() {
		t.Error("config should exist")
	}
}
