package job

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackzampolin/tome/internal/progress"
)

var (
	// ErrNotFound is returned for a job with no persisted records.
	ErrNotFound = progress.ErrNotFound

	// ErrStateCorruption halts a job whose persisted records cannot be trusted.
	ErrStateCorruption = progress.ErrStateCorruption

	// ErrTextRequired is returned when a new job is started without input text.
	ErrTextRequired = errors.New("text is required to start a new job")

	// ErrInvalidJobID is returned when a job ID is empty after sanitizing.
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrJobRunning is returned when the job is already running, here or in
	// another process.
	ErrJobRunning = errors.New("job is already running")

	// ErrNoGenerator is returned when no generation provider is configured.
	ErrNoGenerator = errors.New("no generator configured")
)

// MaxJobIDLength bounds sanitized job IDs so they stay usable as file names.
const MaxJobIDLength = 128

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeID maps a free-form job name to a file-system safe ID by replacing
// every character outside [a-zA-Z0-9_-] with an underscore.
func SanitizeID(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidJobID)
	}
	id := unsafeIDChars.ReplaceAllString(name, "_")
	if strings.Trim(id, "_") == "" {
		return "", fmt.Errorf("%w: %q has no usable characters", ErrInvalidJobID, name)
	}
	if len(id) > MaxJobIDLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidJobID, MaxJobIDLength)
	}
	return id, nil
}
