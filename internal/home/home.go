package home

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDirName is the default name for the tome home directory.
	DefaultDirName = ".tome"

	// JobsDirName holds one subdirectory of durable state per job.
	JobsDirName = "jobs"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// CallsDBName is the SQLite journal of generation calls.
	CallsDBName = "calls.db"
)

// Dir represents the tome home directory structure.
//
//	~/.tome/
//	  config.yaml
//	  calls.db
//	  jobs/<job>/{source.txt,units.json,state.json}
//	  outputs/<job>.txt
//	  backups/<job>_unit<N>_<ts>.txt
//	  logs/<job>_<YYYY-MM-DD>.log
//	  run/<job>.pid
//	  ollama/
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.tome).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CallsDBPath returns the path to the generation call journal.
func (d *Dir) CallsDBPath() string {
	return filepath.Join(d.path, CallsDBName)
}

// JobsDir returns the directory holding per-job state.
func (d *Dir) JobsDir() string {
	return filepath.Join(d.path, JobsDirName)
}

// JobDir returns the state directory for a single job.
func (d *Dir) JobDir(jobID string) string {
	return filepath.Join(d.JobsDir(), jobID)
}

// OutputsDir returns the directory for generated output artifacts.
func (d *Dir) OutputsDir() string {
	return filepath.Join(d.path, "outputs")
}

// OutputPath returns the output artifact path for a job.
func (d *Dir) OutputPath(jobID string) string {
	return filepath.Join(d.OutputsDir(), jobID+".txt")
}

// BackupsDir returns the directory for output snapshots.
func (d *Dir) BackupsDir() string {
	return filepath.Join(d.path, "backups")
}

// LogsDir returns the directory for per-job log files.
func (d *Dir) LogsDir() string {
	return filepath.Join(d.path, "logs")
}

// JobLogPath returns the log file for a job on the given day.
func (d *Dir) JobLogPath(jobID string, day time.Time) string {
	return filepath.Join(d.LogsDir(), fmt.Sprintf("%s_%s.log", jobID, day.Format(time.DateOnly)))
}

// RunDir holds the pid files of jobs running in some process.
func (d *Dir) RunDir() string {
	return filepath.Join(d.path, "run")
}

// JobPidPath returns the pid file that marks a job as running.
func (d *Dir) JobPidPath(jobID string) string {
	return filepath.Join(d.RunDir(), jobID+".pid")
}

// OllamaDataDir returns the bind-mount directory for a managed Ollama container.
func (d *Dir) OllamaDataDir() string {
	return filepath.Join(d.path, "ollama")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.JobsDir(), d.OutputsDir(), d.BackupsDir(), d.LogsDir(), d.RunDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
