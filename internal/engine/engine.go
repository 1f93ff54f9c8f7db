// Package engine runs a single unit against a generator with bounded,
// exponentially backed-off retries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/tome/internal/chunk"
	"github.com/jackzampolin/tome/internal/config"
	"github.com/jackzampolin/tome/internal/llmcall"
	"github.com/jackzampolin/tome/internal/prompts"
	"github.com/jackzampolin/tome/internal/providers"
)

// Kind is the terminal classification of a unit run.
type Kind int

const (
	// Success means an attempt returned usable text.
	Success Kind = iota
	// Exhausted means every attempt failed. The job continues with the next unit.
	Exhausted
	// Cancelled means the caller's context ended before an attempt succeeded.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Exhausted:
		return "exhausted"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of RunUnit.
type Outcome struct {
	Kind     Kind
	Text     string
	Result   *providers.GenerateResult
	Err      error
	Attempts int
	// Delays holds the backoff waited before each retry, in order.
	Delays []time.Duration
}

// Config bounds a unit run.
type Config struct {
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	Model          string
	Temperature    float64
}

// ConfigFromJob extracts the retry settings from a job configuration.
func ConfigFromJob(jc config.JobConfig) Config {
	return Config{
		MaxRetries:     jc.MaxRetries,
		RetryDelay:     jc.RetryDelay,
		RequestTimeout: jc.RequestTimeout,
	}
}

// Request identifies the unit being generated.
type Request struct {
	JobID  string
	RunID  string
	Unit   chunk.Unit
	Prompt prompts.Rendered
}

// Engine executes units against one generator.
type Engine struct {
	cfg      Config
	gen      providers.Generator
	recorder llmcall.Recorder
	timer    retry.Timer
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder records every attempt to the call journal.
func WithRecorder(r llmcall.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTimer replaces the timer used for backoff waits.
func WithTimer(t retry.Timer) Option {
	return func(e *Engine) {
		if t != nil {
			e.timer = t
		}
	}
}

// New creates an engine.
func New(cfg Config, gen providers.Generator, opts ...Option) *Engine {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	e := &Engine{
		cfg:    cfg,
		gen:    gen,
		timer:  realTimer{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backoff returns the wait before attempt k+1 given base: base * 2^(k-1).
func Backoff(base time.Duration, k int) time.Duration {
	if k < 1 || base <= 0 {
		return 0
	}
	shift := k - 1
	if shift > 20 {
		shift = 20
	}
	return base * time.Duration(1<<shift)
}

// RunUnit generates text for one unit, retrying transient failures and refusals
// up to MaxRetries attempts. A failed attempt advances rot.
func (e *Engine) RunUnit(ctx context.Context, req Request, rot *Rotation) Outcome {
	var (
		attempts int
		delays   []time.Duration
		result   *providers.GenerateResult
	)
	timer := recordingTimer{inner: e.timer, delays: &delays}
	logger := e.logger.With("job_id", req.JobID, "unit", req.Unit.Number)

	err := retry.Do(
		func() error {
			attempts++
			res, err := e.attempt(ctx, req, rot.Current(), attempts)
			if err != nil {
				if next := rot.Advance(); next != nil {
					logger.Debug("rotated proxy", "proxy", next.Host)
				}
				return err
			}
			result = res
			return nil
		},
		retry.Attempts(uint(e.cfg.MaxRetries)),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.WithTimer(timer),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			return Backoff(e.cfg.RetryDelay, attempts)
		}),
		retry.OnRetry(func(_ uint, err error) {
			logger.Warn("generation attempt failed",
				"attempt", attempts,
				"max_attempts", e.cfg.MaxRetries,
				"error", err)
		}),
	)

	out := Outcome{Attempts: attempts, Delays: delays}
	switch {
	case err == nil:
		out.Kind = Success
		out.Result = result
		out.Text = result.Text
		logger.Info("unit generated", "attempts", attempts, "chars", len([]rune(result.Text)))
	case ctx.Err() != nil:
		out.Kind = Cancelled
		out.Err = ctx.Err()
		logger.Info("unit cancelled", "attempts", attempts)
	default:
		out.Kind = Exhausted
		out.Err = err
		logger.Error("unit exhausted retries", "attempts", attempts, "error", err)
	}
	return out
}

func (e *Engine) attempt(ctx context.Context, req Request, proxy *url.URL, n int) (*providers.GenerateResult, error) {
	actx := ctx
	cancel := func() {}
	if e.cfg.RequestTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
	}
	defer cancel()

	start := time.Now()
	res, err := e.gen.Generate(actx, &providers.GenerateRequest{
		Prompt:      req.Prompt.Prompt,
		System:      req.Prompt.System,
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		Proxy:       proxy,
		RequestID:   uuid.New().String(),
	})
	latency := time.Since(start)

	switch {
	case err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded):
		err = &providers.TransientError{
			Provider: e.gen.Name(),
			Message:  fmt.Sprintf("attempt timed out after %s", e.cfg.RequestTimeout),
			Err:      err,
		}
	case err == nil && res == nil:
		err = &providers.TransientError{Provider: e.gen.Name(), Message: "no result returned"}
	}

	e.record(ctx, req, proxy, n, latency, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) record(ctx context.Context, req Request, proxy *url.URL, n int, latency time.Duration, res *providers.GenerateResult, err error) {
	if e.recorder == nil {
		return
	}
	opts := llmcall.RecordOptions{
		JobID:      req.JobID,
		RunID:      req.RunID,
		Unit:       req.Unit.Number,
		Attempt:    n,
		PromptKey:  req.Prompt.Key,
		PromptHash: req.Prompt.Hash,
		Provider:   e.gen.Name(),
		Latency:    latency,
	}
	if proxy != nil {
		opts.Proxy = proxy.Host
	}
	if rerr := e.recorder.Record(context.WithoutCancel(ctx), llmcall.NewCall(res, err, opts)); rerr != nil {
		e.logger.Warn("failed to record generation call", "job_id", req.JobID, "unit", req.Unit.Number, "error", rerr)
	}
}

type realTimer struct{}

func (realTimer) After(d time.Duration) <-chan time.Time { return time.After(d) }

type recordingTimer struct {
	inner  retry.Timer
	delays *[]time.Duration
}

func (t recordingTimer) After(d time.Duration) <-chan time.Time {
	*t.delays = append(*t.delays, d)
	return t.inner.After(d)
}
