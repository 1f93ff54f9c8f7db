// Package job drives a generation job unit by unit, persisting progress after
// every unit so an interrupted run resumes where it stopped.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/tome/internal/chunk"
	"github.com/jackzampolin/tome/internal/config"
	"github.com/jackzampolin/tome/internal/engine"
	"github.com/jackzampolin/tome/internal/home"
	"github.com/jackzampolin/tome/internal/joblog"
	"github.com/jackzampolin/tome/internal/llmcall"
	"github.com/jackzampolin/tome/internal/output"
	"github.com/jackzampolin/tome/internal/progress"
	"github.com/jackzampolin/tome/internal/prompts"
	"github.com/jackzampolin/tome/internal/providers"
	"github.com/jackzampolin/tome/internal/quality"
)

// CallJournal records generation attempts and answers queries about them.
type CallJournal interface {
	llmcall.Recorder
	List(ctx context.Context, filter llmcall.QueryFilter) ([]llmcall.Call, error)
	DeleteJob(ctx context.Context, jobID string) (int64, error)
}

// Options configures an Orchestrator.
type Options struct {
	Store     progress.Store
	Generator providers.Generator
	Home      *home.Dir
	Config    config.JobConfig

	// Optional
	Calls  CallJournal
	Logger *slog.Logger
	// Timer replaces the backoff timer, for tests.
	Timer retry.Timer
	// Now replaces the clock, for tests.
	Now func() time.Time
}

// Orchestrator runs jobs sequentially, one unit at a time.
type Orchestrator struct {
	store  progress.Store
	home   *home.Dir
	calls  CallJournal
	logger *slog.Logger
	timer  retry.Timer
	now    func() time.Time

	mu      sync.Mutex
	gen     providers.Generator
	cfg     config.JobConfig
	running map[string]string // job ID -> run ID
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Home == nil {
		return nil, fmt.Errorf("home directory is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:   opts.Store,
		home:    opts.Home,
		calls:   opts.Calls,
		logger:  logger,
		timer:   opts.Timer,
		now:     now,
		gen:     opts.Generator,
		cfg:     opts.Config,
		running: make(map[string]string),
	}, nil
}

// SetGenerator swaps the generator used by future runs.
func (o *Orchestrator) SetGenerator(g providers.Generator) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen = g
}

// SetConfig replaces the job configuration used by future runs.
func (o *Orchestrator) SetConfig(cfg config.JobConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
	return nil
}

// Running returns the IDs of jobs currently running in this process.
func (o *Orchestrator) Running() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.running))
	for id := range o.running {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) isRunning(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[id]
	return ok
}

// acquire marks id as running and returns a snapshot of the run settings.
func (o *Orchestrator) acquire(id, runID string) (providers.Generator, config.JobConfig, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[id]; ok {
		return nil, config.JobConfig{}, fmt.Errorf("%w: %s", ErrJobRunning, id)
	}
	if o.gen == nil {
		return nil, config.JobConfig{}, ErrNoGenerator
	}
	o.running[id] = runID
	return o.gen, o.cfg, nil
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, id)
}

// run holds the per-run collaborators.
type run struct {
	id      string
	runID   string
	cfg     config.JobConfig
	logger  *slog.Logger
	engine  *engine.Engine
	rot     *engine.Rotation
	prompts *prompts.Builder
	gate    *quality.Gate
	sink    *output.Sink
}

// Start creates or resumes a job and processes every unit not yet completed.
//
// text is required for a new job. On resume it is optional; when given its
// fingerprint must match the one recorded at creation.
//
// Unit failures never abort the run. Storage errors and corrupted records do:
// they return a nil summary and the error.
func (o *Orchestrator) Start(ctx context.Context, jobID string, text *string) (*Summary, error) {
	id, err := SanitizeID(jobID)
	if err != nil {
		return nil, err
	}
	runID := uuid.New().String()

	gen, cfg, err := o.acquire(id, runID)
	if err != nil {
		return nil, err
	}
	defer o.release(id)

	unlock, err := lockJob(o.home.JobPidPath(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := o.logger
	jl, err := joblog.Open(func(day time.Time) string { return o.home.JobLogPath(id, day) }, o.logger.Handler(), slog.LevelDebug)
	if err != nil {
		o.logger.Warn("job log unavailable", "job_id", id, "error", err)
	} else {
		defer jl.Close()
		logger = jl.Logger()
	}
	logger = logger.With("job_id", id, "run_id", runID)

	started := o.now()
	st, units, mode, err := o.prepare(ctx, id, text, cfg, logger)
	if err != nil {
		logger.Error("job cannot start", "error", err)
		return nil, err
	}

	r, err := o.newRun(id, runID, cfg, gen, logger)
	if err != nil {
		return nil, err
	}
	if err := o.reconcileOutput(ctx, r, st); err != nil {
		logger.Error("output does not match recorded progress", "error", err)
		return nil, err
	}

	logger.Info("job started",
		"mode", mode,
		"total_units", st.TotalUnits,
		"completed", len(st.Completed),
		"provider", gen.Name())

	summary := &Summary{
		JobID:     id,
		RunID:     runID,
		Mode:      mode,
		StartedAt: started,
		CreatedAt: st.CreatedAt,
	}

	if err := o.process(ctx, r, st, units, summary); err != nil {
		logger.Error("job aborted", "error", err)
		return nil, err
	}

	o.finish(r, st, summary)
	return summary, nil
}

// prepare loads an existing job or creates a new one from text.
func (o *Orchestrator) prepare(ctx context.Context, id string, text *string, cfg config.JobConfig, logger *slog.Logger) (*progress.JobState, []chunk.Unit, Mode, error) {
	st, err := o.store.Load(ctx, id)
	switch {
	case err == nil:
		units, err := o.store.LoadUnits(ctx, id)
		if errors.Is(err, progress.ErrNotFound) {
			return nil, nil, "", fmt.Errorf("%w: state exists without a unit list", ErrStateCorruption)
		}
		if err != nil {
			return nil, nil, "", err
		}
		if len(units) != st.TotalUnits {
			return nil, nil, "", fmt.Errorf("%w: unit list has %d units, state expects %d", ErrStateCorruption, len(units), st.TotalUnits)
		}
		if text != nil && chunk.SourceFingerprint(*text) != st.SourceFingerprint {
			return nil, nil, "", fmt.Errorf("%w: supplied text differs from the text this job was created with", ErrStateCorruption)
		}
		return st, units, ModeResume, nil

	case errors.Is(err, progress.ErrNotFound):
		if text == nil {
			return nil, nil, "", fmt.Errorf("%w: %s", ErrTextRequired, id)
		}
		splitter := chunk.Splitter{MaxSize: cfg.ChunkSize, Boundaries: cfg.Boundaries}
		units := splitter.Split(*text)
		flagged := chunk.LogValidation(logger, units, cfg.Boundaries)
		logger.Info("job chunked", "units", len(units), "flagged_units", flagged, "chunk_size", cfg.ChunkSize)

		st := progress.NewJobState(id, len(units), chunk.SourceFingerprint(*text), o.now())
		if err := o.store.SaveUnits(ctx, id, units); err != nil {
			return nil, nil, "", err
		}
		if err := o.store.SaveSource(ctx, id, *text); err != nil {
			return nil, nil, "", err
		}
		if err := o.store.Save(ctx, st); err != nil {
			return nil, nil, "", err
		}
		return st, units, ModeNew, nil

	default:
		return nil, nil, "", err
	}
}

func (o *Orchestrator) newRun(id, runID string, cfg config.JobConfig, gen providers.Generator, logger *slog.Logger) (*run, error) {
	builder, err := prompts.NewBuilderFromFile(cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	gate, err := quality.NewGate(quality.Config{
		MinLengthRatio: cfg.MinLengthRatio,
		RefusalPhrases: cfg.RefusalPhrases,
		TargetScript:   cfg.TargetScript,
	})
	if err != nil {
		return nil, err
	}
	rot, err := engine.NewRotation(cfg.Proxies)
	if err != nil {
		return nil, err
	}
	sink, err := output.Open(o.home.OutputPath(id), id, cfg.TargetLanguage, o.now())
	if err != nil {
		return nil, err
	}

	engOpts := []engine.Option{engine.WithLogger(logger), engine.WithTimer(o.timer)}
	if o.calls != nil {
		engOpts = append(engOpts, engine.WithRecorder(o.calls))
	}
	return &run{
		id:      id,
		runID:   runID,
		cfg:     cfg,
		logger:  logger,
		engine:  engine.New(engine.ConfigFromJob(cfg), gen, engOpts...),
		rot:     rot,
		prompts: builder,
		gate:    gate,
		sink:    sink,
	}, nil
}

// reconcileOutput cuts the artifact back to the size recorded with the last
// saved unit outcome, so an entry appended before a crash or failed save is
// not duplicated when its unit runs again.
func (o *Orchestrator) reconcileOutput(ctx context.Context, r *run, st *progress.JobState) error {
	size, err := r.sink.Size()
	if err != nil {
		return err
	}
	switch {
	case st.OutputSize > 0 && size > st.OutputSize:
		r.logger.Warn("discarding unrecorded output", "bytes", size-st.OutputSize)
		if err := r.sink.Truncate(st.OutputSize); err != nil {
			return err
		}
		return nil
	case size < st.OutputSize:
		r.logger.Warn("output is shorter than recorded", "size", size, "recorded", st.OutputSize)
	case size == st.OutputSize:
		return nil
	}
	st.OutputSize = size
	return o.store.Save(context.WithoutCancel(ctx), st)
}

// process runs every pending unit in order. It returns an error only for
// failures that make further progress untrustworthy.
func (o *Orchestrator) process(ctx context.Context, r *run, st *progress.JobState, units []chunk.Unit, summary *Summary) error {
	succeeded := 0
	for _, u := range units {
		if st.IsCompleted(u.Number) {
			continue
		}
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		if summary.NewlyProcessed > 0 && r.cfg.PacingDelay > 0 {
			if !sleep(ctx, r.cfg.PacingDelay) {
				summary.Cancelled = true
				break
			}
		}

		rendered, err := r.prompts.Build(prompts.Data{
			Text:           u.Text,
			Number:         u.Number,
			Total:          st.TotalUnits,
			TargetLanguage: r.cfg.TargetLanguage,
		})
		if err != nil {
			return err
		}

		r.logger.Info("processing unit", "unit", u.Number, "total", st.TotalUnits, "chars", u.Len())
		out := r.engine.RunUnit(ctx, engine.Request{JobID: r.id, RunID: r.runID, Unit: u, Prompt: rendered}, r.rot)

		var result UnitResult
		switch out.Kind {
		case engine.Cancelled:
			summary.Cancelled = true
		case engine.Success:
			result, err = o.recordSuccess(ctx, r, st, u, out)
		case engine.Exhausted:
			result, err = o.recordFailure(ctx, r, st, u, out)
		}
		if err != nil {
			return err
		}
		if summary.Cancelled {
			break
		}

		summary.NewlyProcessed++
		summary.Units = append(summary.Units, result)

		if out.Kind == engine.Success {
			succeeded++
			if r.cfg.AutoBackup && r.cfg.BackupInterval > 0 && succeeded%r.cfg.BackupInterval == 0 {
				if path := o.backup(r, strconv.Itoa(u.Number)); path != "" {
					summary.Backups = append(summary.Backups, path)
				}
			}
		}
	}
	if summary.Cancelled {
		r.logger.Info("job paused", "newly_processed", summary.NewlyProcessed)
	}
	return nil
}

func (o *Orchestrator) recordSuccess(ctx context.Context, r *run, st *progress.JobState, u chunk.Unit, out engine.Outcome) (UnitResult, error) {
	assessment := r.gate.Assess(u.Text, out.Text)
	if err := r.sink.Append(u.Number, out.Text); err != nil {
		return UnitResult{}, err
	}
	size, err := r.sink.Size()
	if err != nil {
		return UnitResult{}, err
	}
	st.OutputSize = size

	st.MarkCompleted(u.Number)
	st.AddRetries(u.Number, out.Attempts-1)
	if !assessment.Acceptable {
		st.FlagQuality(u.Number, assessment.Reasons)
		r.logger.Warn("unit flagged by quality gate", "unit", u.Number, "reasons", strings.Join(assessment.Reasons, ","))
	}
	st.UpdatedAt = o.now()
	if err := o.store.Save(context.WithoutCancel(ctx), st); err != nil {
		return UnitResult{}, err
	}

	return UnitResult{
		Unit:           u.Number,
		Status:         UnitSucceeded,
		Attempts:       out.Attempts,
		Chars:          len([]rune(out.Text)),
		QualityReasons: assessment.Reasons,
	}, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, r *run, st *progress.JobState, u chunk.Unit, out engine.Outcome) (UnitResult, error) {
	msg := "unknown error"
	if out.Err != nil {
		msg = out.Err.Error()
	}
	if err := r.sink.AppendError(u.Number, out.Attempts, msg); err != nil {
		return UnitResult{}, err
	}
	size, err := r.sink.Size()
	if err != nil {
		return UnitResult{}, err
	}
	st.OutputSize = size

	st.MarkFailed(u.Number)
	st.AddRetries(u.Number, out.Attempts)
	st.UpdatedAt = o.now()
	if err := o.store.Save(context.WithoutCancel(ctx), st); err != nil {
		return UnitResult{}, err
	}

	return UnitResult{
		Unit:     u.Number,
		Status:   UnitFailed,
		Attempts: out.Attempts,
		Error:    msg,
	}, nil
}

// finish stamps completion and fills the summary counts.
func (o *Orchestrator) finish(r *run, st *progress.JobState, summary *Summary) {
	if st.IsComplete() && st.CompletedAt == nil {
		// Units retried on resume were appended after later ones.
		if err := r.sink.Compact(); err != nil {
			r.logger.Warn("failed to order output", "error", err)
		} else if size, err := r.sink.Size(); err == nil {
			st.OutputSize = size
		}
		st.MarkComplete(o.now())
		st.UpdatedAt = o.now()
		// Completion is derivable from the unit sets, so a failed save
		// here only loses the timestamp.
		if err := o.store.Save(context.Background(), st); err != nil {
			r.logger.Warn("failed to save completion time", "error", err)
		}
		if r.cfg.AutoBackup {
			if path := o.backup(r, "final"); path != "" {
				summary.Backups = append(summary.Backups, path)
			}
		}
	}

	summary.Status = StatusInProgress
	if st.IsComplete() {
		summary.Status = StatusCompleted
	}
	summary.TotalUnits = st.TotalUnits
	summary.Completed = len(st.Completed)
	summary.Failed = len(st.Failed)
	summary.QualityFlagged = len(st.QualityFlags)
	summary.Remaining = st.Remaining()
	summary.Percentage = st.Percentage()
	summary.CompletedAt = st.CompletedAt
	summary.FinishedAt = o.now()
	summary.OutputPath = r.sink.Path()
	if size, err := r.sink.Size(); err == nil {
		summary.OutputSize = size
	}

	r.logger.Info("job finished",
		"status", summary.Status,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"quality_flagged", summary.QualityFlagged,
		"newly_processed", summary.NewlyProcessed,
		"percentage", summary.Percentage)
}

// backup snapshots the output. Failures are logged and never fatal.
func (o *Orchestrator) backup(r *run, label string) string {
	path, err := r.sink.Snapshot(o.home.BackupsDir(), r.id, label, o.now())
	if err != nil {
		r.logger.Warn("backup failed", "label", label, "error", err)
		return ""
	}
	r.logger.Info("backup written", "path", path)
	return path
}

// sleep waits for d or until ctx is done. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
