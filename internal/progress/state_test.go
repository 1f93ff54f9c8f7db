package progress

import (
	"slices"
	"testing"
	"time"
)

func TestJobState_MarkCompletedClearsFailure(t *testing.T) {
	st := NewJobState("job", 5, "fp", time.Now())

	st.MarkFailed(3)
	st.MarkFailed(1)
	if !slices.Equal(st.Failed, []int{1, 3}) {
		t.Fatalf("failed = %v", st.Failed)
	}

	st.MarkCompleted(3)
	if st.IsFailed(3) {
		t.Error("unit 3 should no longer be failed")
	}
	if !st.IsCompleted(3) {
		t.Error("unit 3 should be completed")
	}

	// Completed units are never demoted.
	st.MarkFailed(3)
	if st.IsFailed(3) {
		t.Error("completed unit was marked failed")
	}

	// Duplicate success is idempotent.
	st.MarkCompleted(3)
	if len(st.Completed) != 1 {
		t.Errorf("completed = %v", st.Completed)
	}
	if err := st.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestJobState_Percentage(t *testing.T) {
	tests := []struct {
		total, done int
		want        float64
	}{
		{0, 0, 100},
		{3, 1, 33.33},
		{3, 2, 66.67},
		{4, 4, 100},
	}
	for _, tt := range tests {
		st := NewJobState("job", tt.total, "fp", time.Now())
		for n := 1; n <= tt.done; n++ {
			st.MarkCompleted(n)
		}
		if got := st.Percentage(); got != tt.want {
			t.Errorf("%d/%d: got %v, want %v", tt.done, tt.total, got, tt.want)
		}
		if st.Remaining() != tt.total-tt.done {
			t.Errorf("%d/%d: remaining %d", tt.done, tt.total, st.Remaining())
		}
	}
}

func TestJobState_Check(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*JobState)
	}{
		{"overlap", func(s *JobState) { s.Completed = []int{1}; s.Failed = []int{1} }},
		{"out of range", func(s *JobState) { s.Completed = []int{4} }},
		{"zero", func(s *JobState) { s.Failed = []int{0} }},
		{"unsorted", func(s *JobState) { s.Completed = []int{2, 1} }},
		{"duplicate", func(s *JobState) { s.Completed = []int{2, 2} }},
		{"no id", func(s *JobState) { s.JobID = "" }},
		{"negative output size", func(s *JobState) { s.OutputSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewJobState("job", 3, "fp", time.Now())
			tt.mutate(st)
			if err := st.Check(); err == nil {
				t.Error("expected invariant violation")
			}
		})
	}
}

func TestJobState_CloneIsDeep(t *testing.T) {
	st := NewJobState("job", 3, "fp", time.Now())
	st.MarkCompleted(1)
	st.AddRetries(2, 3)
	st.FlagQuality(1, []string{"too_short"})
	st.MarkComplete(time.Now())

	c := st.Clone()
	c.MarkCompleted(2)
	c.AddRetries(2, 1)
	c.QualityFlags[0].Reasons[0] = "changed"
	*c.CompletedAt = time.Time{}

	if st.IsCompleted(2) || st.RetryCounts[2] != 3 || st.QualityFlags[0].Reasons[0] != "too_short" || st.CompletedAt.IsZero() {
		t.Error("clone shares memory with original")
	}
}

func TestJobState_MarkCompleteOnce(t *testing.T) {
	st := NewJobState("job", 0, "fp", time.Now())
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.MarkComplete(first)
	st.MarkComplete(first.Add(time.Hour))
	if !st.CompletedAt.Equal(first) {
		t.Errorf("CompletedAt changed to %v", st.CompletedAt)
	}
}
