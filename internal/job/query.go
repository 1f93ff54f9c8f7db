package job

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jackzampolin/tome/internal/joblog"
	"github.com/jackzampolin/tome/internal/llmcall"
	"github.com/jackzampolin/tome/internal/output"
	"github.com/jackzampolin/tome/internal/progress"
)

// Status returns the persisted view of a job.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*View, error) {
	id, err := SanitizeID(jobID)
	if err != nil {
		return nil, err
	}
	st, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	v := o.view(st)
	return &v, nil
}

func (o *Orchestrator) view(st *progress.JobState) View {
	v := View{
		JobID:          st.JobID,
		Status:         StatusInProgress,
		Running:        o.isRunning(st.JobID),
		TotalUnits:     st.TotalUnits,
		Completed:      len(st.Completed),
		Failed:         st.Failed,
		QualityFlagged: len(st.QualityFlags),
		Remaining:      st.Remaining(),
		Percentage:     st.Percentage(),
		RetryCounts:    st.RetryCounts,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
		CompletedAt:    st.CompletedAt,
		OutputPath:     o.home.OutputPath(st.JobID),
	}
	if st.IsComplete() {
		v.Status = StatusCompleted
	}
	if info, err := os.Stat(v.OutputPath); err == nil {
		v.OutputSize = info.Size()
	}
	return v
}

// List returns every persisted job with aggregate counts. A job whose records
// fail to load is listed with its error rather than failing the listing.
func (o *Orchestrator) List(ctx context.Context) (*Listing, error) {
	ids, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := &Listing{Jobs: make([]View, 0, len(ids))}
	for _, id := range ids {
		st, err := o.store.Load(ctx, id)
		if err != nil {
			o.logger.Warn("failed to load job for listing", "job_id", id, "error", err)
			out.Jobs = append(out.Jobs, View{JobID: id, Status: StatusInProgress, Running: o.isRunning(id), Error: err.Error()})
			out.InProgress++
			continue
		}
		v := o.view(st)
		out.Jobs = append(out.Jobs, v)
		if v.Status == StatusCompleted {
			out.Completed++
		} else {
			out.InProgress++
		}
	}
	out.Total = len(out.Jobs)
	return out, nil
}

// Clear irreversibly deletes every record of a job: state, units, source,
// output, backups, logs and recorded calls. A running job cannot be cleared.
func (o *Orchestrator) Clear(ctx context.Context, jobID string) error {
	id, err := SanitizeID(jobID)
	if err != nil {
		return err
	}
	if o.isRunning(id) {
		return fmt.Errorf("%w: %s", ErrJobRunning, id)
	}
	if pid, ok := lockOwner(o.home.JobPidPath(id)); ok {
		return fmt.Errorf("%w: %s in process %d", ErrJobRunning, id, pid)
	}

	found := true
	if err := o.store.Delete(ctx, id); err != nil {
		if !errors.Is(err, progress.ErrNotFound) {
			return err
		}
		found = false
	}

	// A leftover pid file is not evidence that the job exists.
	if err := os.Remove(o.home.JobPidPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	files := []string{o.home.OutputPath(id)}
	backups, err := output.Backups(o.home.BackupsDir(), id)
	if err != nil {
		return err
	}
	files = append(files, backups...)
	logs, err := o.logFiles(id)
	if err != nil {
		return err
	}
	files = append(files, logs...)

	var errs []error
	for _, f := range files {
		err := os.Remove(f)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, fs.ErrNotExist):
			errs = append(errs, err)
		}
	}

	if o.calls != nil {
		n, err := o.calls.DeleteJob(ctx, id)
		if err != nil {
			errs = append(errs, err)
		}
		if n > 0 {
			found = true
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear job %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	o.logger.Info("job cleared", "job_id", id, "files_removed", len(files))
	return nil
}

// Logs returns the job's log entries for a day.
func (o *Orchestrator) Logs(jobID string, day time.Time) ([]joblog.Entry, error) {
	id, err := SanitizeID(jobID)
	if err != nil {
		return nil, err
	}
	return joblog.Read(o.home.JobLogPath(id, day))
}

// Calls returns the recorded generation attempts of a job, oldest first.
// It returns nil when no call journal is configured.
func (o *Orchestrator) Calls(ctx context.Context, jobID string, limit int) ([]llmcall.Call, error) {
	id, err := SanitizeID(jobID)
	if err != nil {
		return nil, err
	}
	if o.calls == nil {
		return nil, nil
	}
	return o.calls.List(ctx, llmcall.QueryFilter{JobID: id, Limit: limit})
}

// Output returns the parsed output entries of a job.
func (o *Orchestrator) Output(jobID string) ([]output.Entry, error) {
	id, err := SanitizeID(jobID)
	if err != nil {
		return nil, err
	}
	entries, err := output.Read(o.home.OutputPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entries, err
}

func (o *Orchestrator) logFiles(id string) ([]string, error) {
	return filepath.Glob(filepath.Join(o.home.LogsDir(), id+"_[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9].log"))
}
