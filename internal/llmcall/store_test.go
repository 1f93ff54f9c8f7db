package llmcall

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackzampolin/tome/internal/providers"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "calls.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewCall(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		res := &providers.GenerateResult{
			Text:             "नमस्ते",
			Provider:         "mock",
			ModelUsed:        "m1",
			PromptTokens:     10,
			CompletionTokens: 4,
			ExecutionTime:    1500 * time.Millisecond,
		}
		c := NewCall(res, nil, RecordOptions{JobID: "book", Unit: 2, Attempt: 1, PromptHash: "abc"})
		if !c.Success || c.Error != "" {
			t.Errorf("Success = %v, Error = %q", c.Success, c.Error)
		}
		if c.ResponseLen != 6 {
			t.Errorf("ResponseLen = %d, want 6 runes", c.ResponseLen)
		}
		if c.LatencyMs != 1500 {
			t.Errorf("LatencyMs = %d, want 1500", c.LatencyMs)
		}
		if c.ID == "" || c.Provider != "mock" || c.Model != "m1" {
			t.Errorf("unexpected call: %+v", c)
		}
	})

	t.Run("error", func(t *testing.T) {
		c := NewCall(nil, errors.New("boom"), RecordOptions{JobID: "book", Provider: "ollama", Latency: time.Second})
		if c.Success || c.Error != "boom" {
			t.Errorf("Success = %v, Error = %q", c.Success, c.Error)
		}
		if c.Provider != "ollama" || c.LatencyMs != 1000 {
			t.Errorf("unexpected call: %+v", c)
		}
	})

	t.Run("nil result", func(t *testing.T) {
		c := NewCall(nil, nil, RecordOptions{})
		if c.Success {
			t.Error("nil result should not be a success")
		}
	})
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	calls := []*Call{
		{ID: "a", Timestamp: base, JobID: "book", Unit: 1, Attempt: 1, Provider: "mock", Success: true, ResponseLen: 5},
		{ID: "b", Timestamp: base.Add(time.Second), JobID: "book", Unit: 2, Attempt: 1, Provider: "mock", Error: "timeout"},
		{ID: "c", Timestamp: base.Add(2 * time.Second), JobID: "book", Unit: 2, Attempt: 2, Provider: "mock", Success: true},
		{ID: "d", Timestamp: base, JobID: "other", Unit: 1, Attempt: 1, Provider: "mock", Success: true},
	}
	for _, c := range calls {
		if err := store.Record(ctx, c); err != nil {
			t.Fatalf("Record(%s): %v", c.ID, err)
		}
	}

	got, err := store.List(ctx, QueryFilter{JobID: "book"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List returned %d calls, want 3", len(got))
	}
	if got[0].ID != "a" || got[2].ID != "c" {
		t.Errorf("order = %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("Timestamp = %v, want %v", got[0].Timestamp, base)
	}
	if got[1].Error != "timeout" || got[1].Success {
		t.Errorf("failed call round trip: %+v", got[1])
	}

	unit := 2
	got, err = store.List(ctx, QueryFilter{JobID: "book", Unit: &unit})
	if err != nil {
		t.Fatalf("List unit: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("unit filter returned %d, want 2", len(got))
	}

	failed := false
	got, err = store.List(ctx, QueryFilter{Success: &failed})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("success filter returned %+v", got)
	}

	got, err = store.List(ctx, QueryFilter{JobID: "book", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("pagination returned %+v", got)
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	got, err := store.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("Get(missing) = %v, %v", got, err)
	}

	if err := store.Record(ctx, &Call{ID: "x", Timestamp: time.Now(), JobID: "j", Unit: 1, Attempt: 3}); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get(ctx, "x")
	if err != nil || got == nil {
		t.Fatalf("Get(x) = %v, %v", got, err)
	}
	if got.Attempt != 3 {
		t.Errorf("Attempt = %d, want 3", got.Attempt)
	}
}

func TestDeleteJob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, job := range []string{"a", "a", "b"} {
		c := &Call{ID: string(rune('x' + i)), Timestamp: time.Now(), JobID: job, Unit: 1, Attempt: 1}
		if err := store.Record(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.DeleteJob(ctx, "a")
	if err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	left, _ := store.List(ctx, QueryFilter{})
	if len(left) != 1 || left[0].JobID != "b" {
		t.Errorf("remaining = %+v", left)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "calls.db")

	s1, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Record(ctx, &Call{ID: "keep", Timestamp: time.Now(), JobID: "j", Unit: 1, Attempt: 1}); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, "keep")
	if err != nil || got == nil {
		t.Fatalf("Get after reopen = %v, %v", got, err)
	}
}
