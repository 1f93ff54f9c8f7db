// Package progress persists per-job completion state so that a run can
// stop at any point between units and resume without repeating work.
package progress

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// QualityFlag records heuristic concerns about a unit's accepted output.
type QualityFlag struct {
	Unit    int      `json:"unit"`
	Reasons []string `json:"reasons"`
}

// JobState is the durable record of a job's progress.
//
// Completed and Failed are kept sorted and never share a unit number.
// TotalUnits and SourceFingerprint are fixed when the job is created.
// OutputSize is the artifact length in bytes as of the last recorded unit
// outcome; anything beyond it was written but never recorded.
type JobState struct {
	JobID             string        `json:"job_id"`
	TotalUnits        int           `json:"total_units"`
	Completed         []int         `json:"completed"`
	Failed            []int         `json:"failed"`
	RetryCounts       map[int]int   `json:"retry_counts"`
	QualityFlags      []QualityFlag `json:"quality_flags"`
	SourceFingerprint string        `json:"source_fingerprint"`
	OutputSize        int64         `json:"output_size"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// NewJobState creates the initial state for a freshly chunked job.
func NewJobState(jobID string, totalUnits int, sourceFingerprint string, now time.Time) *JobState {
	return &JobState{
		JobID:             jobID,
		TotalUnits:        totalUnits,
		Completed:         []int{},
		Failed:            []int{},
		RetryCounts:       map[int]int{},
		QualityFlags:      []QualityFlag{},
		SourceFingerprint: sourceFingerprint,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsCompleted reports whether unit n has a recorded success.
func (s *JobState) IsCompleted(n int) bool {
	_, ok := slices.BinarySearch(s.Completed, n)
	return ok
}

// IsFailed reports whether unit n's most recent outcome was exhaustion.
func (s *JobState) IsFailed(n int) bool {
	_, ok := slices.BinarySearch(s.Failed, n)
	return ok
}

// MarkCompleted records a success for unit n and clears any stale failure.
func (s *JobState) MarkCompleted(n int) {
	s.Completed = insertSorted(s.Completed, n)
	s.Failed = removeSorted(s.Failed, n)
}

// MarkFailed records exhaustion for unit n. A completed unit is never
// demoted to failed.
func (s *JobState) MarkFailed(n int) {
	if s.IsCompleted(n) {
		return
	}
	s.Failed = insertSorted(s.Failed, n)
}

// AddRetries adds attempts to unit n's cumulative retry count.
func (s *JobState) AddRetries(n, attempts int) {
	if attempts <= 0 {
		return
	}
	if s.RetryCounts == nil {
		s.RetryCounts = map[int]int{}
	}
	s.RetryCounts[n] += attempts
}

// FlagQuality appends a quality flag for unit n.
func (s *JobState) FlagQuality(n int, reasons []string) {
	s.QualityFlags = append(s.QualityFlags, QualityFlag{Unit: n, Reasons: slices.Clone(reasons)})
}

// IsComplete reports whether every unit has a recorded success.
func (s *JobState) IsComplete() bool {
	return len(s.Completed) == s.TotalUnits
}

// MarkComplete stamps CompletedAt once.
func (s *JobState) MarkComplete(now time.Time) {
	if s.CompletedAt == nil {
		t := now
		s.CompletedAt = &t
	}
}

// Remaining returns the number of units without a recorded success.
func (s *JobState) Remaining() int {
	return s.TotalUnits - len(s.Completed)
}

// Percentage returns completion as a percentage rounded to two decimals.
// A job with no units is 100% complete.
func (s *JobState) Percentage() float64 {
	if s.TotalUnits == 0 {
		return 100
	}
	p := float64(len(s.Completed)) / float64(s.TotalUnits) * 100
	return math.Round(p*100) / 100
}

// Clone returns a deep copy.
func (s *JobState) Clone() *JobState {
	c := *s
	c.Completed = slices.Clone(s.Completed)
	c.Failed = slices.Clone(s.Failed)
	c.RetryCounts = maps.Clone(s.RetryCounts)
	c.QualityFlags = make([]QualityFlag, len(s.QualityFlags))
	for i, f := range s.QualityFlags {
		c.QualityFlags[i] = QualityFlag{Unit: f.Unit, Reasons: slices.Clone(f.Reasons)}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Check verifies the structural invariants of a state record.
func (s *JobState) Check() error {
	if s.JobID == "" {
		return fmt.Errorf("missing job id")
	}
	if s.TotalUnits < 0 {
		return fmt.Errorf("negative total units %d", s.TotalUnits)
	}
	if s.OutputSize < 0 {
		return fmt.Errorf("negative output size %d", s.OutputSize)
	}
	if !slices.IsSorted(s.Completed) || !slices.IsSorted(s.Failed) {
		return fmt.Errorf("unit sets are not sorted")
	}
	for i, n := range s.Completed {
		if n < 1 || n > s.TotalUnits {
			return fmt.Errorf("completed unit %d outside 1..%d", n, s.TotalUnits)
		}
		if i > 0 && s.Completed[i-1] == n {
			return fmt.Errorf("completed unit %d recorded twice", n)
		}
		if s.IsFailed(n) {
			return fmt.Errorf("unit %d is both completed and failed", n)
		}
	}
	for _, n := range s.Failed {
		if n < 1 || n > s.TotalUnits {
			return fmt.Errorf("failed unit %d outside 1..%d", n, s.TotalUnits)
		}
	}
	return nil
}

// normalize replaces nil collections so the encoded record always
// carries arrays and objects rather than nulls.
func (s *JobState) normalize() {
	if s.Completed == nil {
		s.Completed = []int{}
	}
	if s.Failed == nil {
		s.Failed = []int{}
	}
	if s.RetryCounts == nil {
		s.RetryCounts = map[int]int{}
	}
	if s.QualityFlags == nil {
		s.QualityFlags = []QualityFlag{}
	}
	for i := range s.QualityFlags {
		if s.QualityFlags[i].Reasons == nil {
			s.QualityFlags[i].Reasons = []string{}
		}
	}
}

func insertSorted(s []int, n int) []int {
	i, found := slices.BinarySearch(s, n)
	if found {
		return s
	}
	return slices.Insert(s, i, n)
}

func removeSorted(s []int, n int) []int {
	i, found := slices.BinarySearch(s, n)
	if !found {
		return s
	}
	return slices.Delete(s, i, i+1)
}
