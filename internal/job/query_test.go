package job

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "book", want: "book"},
		{in: "My Book: Vol 2", want: "My_Book__Vol_2"},
		{in: "  sophie-world_1 ", want: "sophie-world_1"},
		{in: "दुनिया", wantErr: true},
		{in: "", wantErr: true},
		{in: strings.Repeat("a", MaxJobIDLength+1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizeID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidJobID) {
					t.Errorf("SanitizeID(%q) error = %v, want ErrInvalidJobID", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("SanitizeID(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.orch.Status(ctx, "book"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status(unknown) error = %v, want ErrNotFound", err)
	}

	if _, err := f.orch.Start(ctx, "book", ptr(fiveSentences)); err != nil {
		t.Fatal(err)
	}
	v, err := f.orch.Status(ctx, "book")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusCompleted || v.TotalUnits != 5 || v.Completed != 5 || v.Remaining != 0 || v.Running {
		t.Errorf("view = %+v", v)
	}
	if v.OutputSize == 0 || v.CompletedAt == nil {
		t.Errorf("view output/completion = %+v", v)
	}
}

func TestList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	listing, err := f.orch.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if listing.Total != 0 || len(listing.Jobs) != 0 {
		t.Errorf("empty listing = %+v", listing)
	}

	if _, err := f.orch.Start(ctx, "done", ptr("One. Two.")); err != nil {
		t.Fatal(err)
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.orch.Start(cctx, "partial", ptr("One. Two.")); err != nil {
		t.Fatal(err)
	}
	f.store.PutRaw("broken", []byte("{"))

	listing, err = f.orch.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if listing.Total != 3 || listing.Completed != 1 || listing.InProgress != 2 {
		t.Errorf("listing totals = %+v", listing)
	}
	byID := map[string]View{}
	for _, v := range listing.Jobs {
		byID[v.JobID] = v
	}
	if byID["partial"].Completed != 0 || byID["partial"].Remaining != 2 {
		t.Errorf("partial = %+v", byID["partial"])
	}
	if byID["broken"].Error == "" {
		t.Error("a corrupt job should be listed with its error")
	}
}

func TestClear(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.orch.Clear(ctx, "book"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Clear(unknown) error = %v, want ErrNotFound", err)
	}

	sum, err := f.orch.Start(ctx, "book", ptr(fiveSentences))
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Backups) == 0 {
		t.Fatal("expected a final backup")
	}
	if err := f.orch.Clear(ctx, "book"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, err := f.orch.Status(ctx, "book"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status after Clear error = %v", err)
	}
	for _, p := range append([]string{sum.OutputPath}, sum.Backups...) {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists", p)
		}
	}
	if logs, _ := f.orch.logFiles("book"); len(logs) != 0 {
		t.Errorf("logs still present: %v", logs)
	}
	if entries, _ := f.orch.Logs("book", time.Now()); len(entries) != 0 {
		t.Errorf("log entries after Clear = %d", len(entries))
	}

	// A cleared job starts fresh.
	sum, err = f.orch.Start(ctx, "book", ptr("Brand new."))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Mode != ModeNew || sum.TotalUnits != 1 {
		t.Errorf("summary after Clear = %+v", sum)
	}
}

func TestOutput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.orch.Output("book"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Output(unknown) error = %v", err)
	}
	if _, err := f.orch.Start(ctx, "book", ptr("One. Two.")); err != nil {
		t.Fatal(err)
	}
	entries, err := f.orch.Output("book")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Unit != 1 {
		t.Errorf("entries = %+v", entries)
	}
}
