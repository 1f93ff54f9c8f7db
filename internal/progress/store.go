package progress

import (
	"context"
	"errors"

	"github.com/jackzampolin/tome/internal/chunk"
)

var (
	// ErrNotFound is returned when a job has no persisted record.
	ErrNotFound = errors.New("job not found")

	// ErrStateCorruption is returned when persisted records are malformed
	// or inconsistent with each other.
	ErrStateCorruption = errors.New("job state corrupted")
)

// Store persists job records.
//
// Implementations assume a single writer per job. Two processes running
// the same job concurrently will overwrite each other's progress.
type Store interface {
	// Load returns the state of a job, ErrNotFound if none exists, or an
	// error wrapping ErrStateCorruption if the record is invalid.
	Load(ctx context.Context, jobID string) (*JobState, error)

	// Save durably replaces the state of a job. When Save returns nil the
	// record survives a crash.
	Save(ctx context.Context, st *JobState) error

	// LoadUnits returns the unit list created when the job started.
	LoadUnits(ctx context.Context, jobID string) ([]chunk.Unit, error)

	// SaveUnits persists the unit list. It is written once per job.
	SaveUnits(ctx context.Context, jobID string, units []chunk.Unit) error

	// SaveSource keeps the original input text alongside the job.
	SaveSource(ctx context.Context, jobID string, text string) error

	// LoadSource returns the original input text.
	LoadSource(ctx context.Context, jobID string) (string, error)

	// List returns the IDs of all jobs with a persisted state, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes every record of a job. Deleting an unknown job
	// returns ErrNotFound.
	Delete(ctx context.Context, jobID string) error
}
