package job

import "time"

// Mode says whether a run created the job or continued it.
type Mode string

const (
	ModeNew    Mode = "new"
	ModeResume Mode = "resume"
)

// Status is the completion state reported for a job.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusInProgress Status = "in_progress"
)

// UnitResult describes what happened to one unit during a run.
type UnitResult struct {
	Unit           int      `json:"unit"`
	Status         string   `json:"status"`
	Attempts       int      `json:"attempts"`
	Chars          int      `json:"chars,omitempty"`
	QualityReasons []string `json:"quality_reasons,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Unit result statuses.
const (
	UnitSucceeded = "success"
	UnitFailed    = "failed"
)

// Summary is returned by Start.
type Summary struct {
	JobID  string `json:"job_id"`
	RunID  string `json:"run_id"`
	Mode   Mode   `json:"mode"`
	Status Status `json:"status"`

	TotalUnits     int     `json:"total_units"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	QualityFlagged int     `json:"quality_flagged"`
	NewlyProcessed int     `json:"newly_processed"`
	Remaining      int     `json:"remaining"`
	Percentage     float64 `json:"percentage"`
	Cancelled      bool    `json:"cancelled,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	OutputPath string   `json:"output_path"`
	OutputSize int64    `json:"output_size"`
	Backups    []string `json:"backups,omitempty"`

	Units []UnitResult `json:"units,omitempty"`
}

// View is the status of a persisted job.
type View struct {
	JobID          string      `json:"job_id"`
	Status         Status      `json:"status"`
	Running        bool        `json:"running"`
	TotalUnits     int         `json:"total_units"`
	Completed      int         `json:"completed"`
	Failed         []int       `json:"failed"`
	QualityFlagged int         `json:"quality_flagged"`
	Remaining      int         `json:"remaining"`
	Percentage     float64     `json:"percentage"`
	RetryCounts    map[int]int `json:"retry_counts,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	OutputPath string `json:"output_path"`
	OutputSize int64  `json:"output_size"`

	// Error is set in listings for a job whose records could not be loaded.
	Error string `json:"error,omitempty"`
}

// Listing is the result of List.
type Listing struct {
	Jobs       []View `json:"jobs"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"in_progress"`
}
