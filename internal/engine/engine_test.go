package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/tome/internal/chunk"
	"github.com/jackzampolin/tome/internal/llmcall"
	"github.com/jackzampolin/tome/internal/prompts"
	"github.com/jackzampolin/tome/internal/providers"
)

// instantTimer fires immediately so backoff is observable without sleeping.
type instantTimer struct{}

func (instantTimer) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

type memRecorder struct {
	mu    sync.Mutex
	calls []*llmcall.Call
	err   error
}

func (r *memRecorder) Record(_ context.Context, c *llmcall.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.err
}

func testRequest() Request {
	u := chunk.Unit{Number: 4, Text: "Hello world."}
	u.Fingerprint = chunk.Fingerprint(u.Text)
	return Request{
		JobID: "book",
		RunID: "run-1",
		Unit:  u,
		Prompt: prompts.Rendered{
			Key:    prompts.TranslatePromptKey,
			Prompt: "translate: Hello world.",
			Hash:   "h1",
		},
	}
}

func transient(msg string) error {
	return &providers.TransientError{Provider: "mock", Message: msg}
}

func TestBackoff(t *testing.T) {
	base := 2000 * time.Millisecond
	tests := []struct {
		k    int
		want time.Duration
	}{
		{0, 0},
		{1, 2000 * time.Millisecond},
		{2, 4000 * time.Millisecond},
		{3, 8000 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := Backoff(base, tt.k); got != tt.want {
			t.Errorf("Backoff(%v, %d) = %v, want %v", base, tt.k, got, tt.want)
		}
	}
	if Backoff(time.Second, 1000) <= 0 {
		t.Error("Backoff should not overflow for large k")
	}
}

func TestRunUnit_SuccessFirstAttempt(t *testing.T) {
	gen := providers.NewMockClient()
	gen.ResponseText = "नमस्ते दुनिया।"
	rec := &memRecorder{}
	e := New(Config{MaxRetries: 3, RetryDelay: 2 * time.Second}, gen, WithTimer(instantTimer{}), WithRecorder(rec))

	out := e.RunUnit(context.Background(), testRequest(), nil)
	if out.Kind != Success {
		t.Fatalf("Kind = %v, err = %v", out.Kind, out.Err)
	}
	if out.Text != "नमस्ते दुनिया।" || out.Attempts != 1 || len(out.Delays) != 0 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if gen.Prompts()[0] != "translate: Hello world." {
		t.Errorf("prompt = %q", gen.Prompts()[0])
	}
	if len(rec.calls) != 1 || !rec.calls[0].Success || rec.calls[0].Unit != 4 || rec.calls[0].PromptHash != "h1" {
		t.Errorf("recorded calls = %+v", rec.calls)
	}
}

func TestRunUnit_EmptyTextIsSuccess(t *testing.T) {
	gen := providers.NewMockClient()
	gen.ResponseText = "   "
	e := New(Config{MaxRetries: 3, RetryDelay: time.Second}, gen, WithTimer(instantTimer{}))

	out := e.RunUnit(context.Background(), testRequest(), nil)
	if out.Kind != Success || out.Attempts != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if gen.Calls() != 1 {
		t.Errorf("generator calls = %d, want 1", gen.Calls())
	}
}

func TestRunUnit_BackoffDoubles(t *testing.T) {
	gen := providers.NewMockClient()
	gen.Script = []providers.MockResponse{
		{Err: transient("unavailable")},
		{Err: transient("unavailable")},
		{Err: transient("unavailable")},
	}
	rec := &memRecorder{}
	e := New(Config{MaxRetries: 3, RetryDelay: 2000 * time.Millisecond}, gen, WithTimer(instantTimer{}), WithRecorder(rec))

	out := e.RunUnit(context.Background(), testRequest(), nil)
	if out.Kind != Exhausted {
		t.Fatalf("Kind = %v, want exhausted", out.Kind)
	}
	if out.Attempts != 3 || gen.Calls() != 3 {
		t.Errorf("Attempts = %d, calls = %d, want 3", out.Attempts, gen.Calls())
	}
	want := []time.Duration{2000 * time.Millisecond, 4000 * time.Millisecond}
	if len(out.Delays) != len(want) {
		t.Fatalf("Delays = %v, want %v", out.Delays, want)
	}
	for i := range want {
		if out.Delays[i] != want[i] {
			t.Errorf("Delays[%d] = %v, want %v", i, out.Delays[i], want[i])
		}
	}
	if !providers.IsTransient(out.Err) {
		t.Errorf("Err = %v, want transient", out.Err)
	}
	if len(rec.calls) != 3 {
		t.Fatalf("recorded %d calls, want 3", len(rec.calls))
	}
	for i, c := range rec.calls {
		if c.Success || c.Attempt != i+1 {
			t.Errorf("call %d = %+v", i, c)
		}
	}
}

func TestRunUnit_RefusalRetried(t *testing.T) {
	gen := providers.NewMockClient()
	gen.Script = []providers.MockResponse{
		{Err: &providers.RefusalError{Provider: "mock", Message: "policy"}},
		{Text: "   "},
		{Text: "ठीक है।"},
	}
	e := New(Config{MaxRetries: 3, RetryDelay: time.Second}, gen, WithTimer(instantTimer{}))

	out := e.RunUnit(context.Background(), testRequest(), nil)
	if out.Kind != Success || out.Text != "ठीक है।" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Attempts)
	}
	if len(out.Delays) != 2 || out.Delays[1] != 2*time.Second {
		t.Errorf("Delays = %v", out.Delays)
	}
}

func TestRunUnit_MaxRetriesFloor(t *testing.T) {
	gen := providers.NewMockClient()
	gen.Script = []providers.MockResponse{{Err: transient("x")}}
	e := New(Config{MaxRetries: 0}, gen, WithTimer(instantTimer{}))

	out := e.RunUnit(context.Background(), testRequest(), nil)
	if out.Kind != Exhausted || out.Attempts != 1 {
		t.Errorf("outcome = %+v, want one exhausted attempt", out)
	}
}

func TestRunUnit_AttemptTimeout(t *testing.T) {
	gen := providers.NewMockClient()
	gen.Latency = time.Second
	e := New(Config{MaxRetries: 2, RequestTimeout: 20 * time.Millisecond}, gen, WithTimer(instantTimer{}))

	out := e.RunUnit(context.Background(), testRequest(), nil)
	if out.Kind != Exhausted {
		t.Fatalf("Kind = %v, want exhausted", out.Kind)
	}
	if out.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", out.Attempts)
	}
	if !providers.IsTransient(out.Err) {
		t.Errorf("timeout should be transient, got %v", out.Err)
	}
}

func TestRunUnit_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := providers.NewMockClient()
	gen.Respond = func(*providers.GenerateRequest) (string, error) {
		cancel()
		return "", transient("down")
	}
	e := New(Config{MaxRetries: 5, RetryDelay: time.Hour}, gen)

	done := make(chan Outcome, 1)
	go func() { done <- e.RunUnit(ctx, testRequest(), nil) }()

	select {
	case out := <-done:
		if out.Kind != Cancelled {
			t.Errorf("Kind = %v, want cancelled", out.Kind)
		}
		if !errors.Is(out.Err, context.Canceled) {
			t.Errorf("Err = %v, want context.Canceled", out.Err)
		}
		if gen.Calls() != 1 {
			t.Errorf("calls = %d, want 1", gen.Calls())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunUnit did not return after cancellation")
	}
}

func TestRunUnit_RotatesProxyOnFailure(t *testing.T) {
	rot, err := NewRotation([]string{"10.0.0.1:8080", "http://10.0.0.2:3128"})
	if err != nil {
		t.Fatal(err)
	}
	gen := providers.NewMockClient()
	gen.Script = []providers.MockResponse{
		{Err: transient("proxy refused")},
		{Text: "ok."},
	}
	rec := &memRecorder{}
	e := New(Config{MaxRetries: 3}, gen, WithTimer(instantTimer{}), WithRecorder(rec))

	out := e.RunUnit(context.Background(), testRequest(), rot)
	if out.Kind != Success {
		t.Fatalf("Kind = %v", out.Kind)
	}
	proxies := gen.Proxies()
	if len(proxies) != 2 || proxies[0].Host != "10.0.0.1:8080" || proxies[1].Host != "10.0.0.2:3128" {
		t.Errorf("proxies = %v", proxies)
	}
	if rec.calls[0].Proxy != "10.0.0.1:8080" {
		t.Errorf("recorded proxy = %q", rec.calls[0].Proxy)
	}
	// Success does not advance.
	if rot.Current().Host != "10.0.0.2:3128" {
		t.Errorf("Current = %v", rot.Current())
	}
}

func TestRunUnit_RecorderErrorIgnored(t *testing.T) {
	gen := providers.NewMockClient()
	rec := &memRecorder{err: errors.New("disk full")}
	e := New(Config{MaxRetries: 1}, gen, WithRecorder(rec))

	if out := e.RunUnit(context.Background(), testRequest(), nil); out.Kind != Success {
		t.Errorf("Kind = %v, recorder failure must not fail the unit", out.Kind)
	}
}

func TestRotation(t *testing.T) {
	var nilRot *Rotation
	if nilRot.Current() != nil || nilRot.Advance() != nil || nilRot.Len() != 0 {
		t.Error("nil rotation should behave as empty")
	}

	empty, err := NewRotation([]string{"", "  "})
	if err != nil {
		t.Fatal(err)
	}
	if empty.Len() != 0 || empty.Current() != nil {
		t.Error("blank entries should be skipped")
	}

	r, err := NewRotation([]string{"a:1", "b:2", "c:3"})
	if err != nil {
		t.Fatal(err)
	}
	seq := []string{r.Current().Host}
	for i := 0; i < 3; i++ {
		seq = append(seq, r.Advance().Host)
	}
	want := []string{"a:1", "b:2", "c:3", "a:1"}
	for i := range want {
		if seq[i] != want[i] {
			t.Errorf("seq[%d] = %q, want %q", i, seq[i], want[i])
		}
	}

	if _, err := NewRotation([]string{"http://"}); err == nil {
		t.Error("expected error for proxy without host")
	}
}

func TestKindString(t *testing.T) {
	if Success.String() != "success" || Exhausted.String() != "exhausted" || Cancelled.String() != "cancelled" {
		t.Error("unexpected Kind strings")
	}
}
