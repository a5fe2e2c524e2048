package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/testutil"
)

const target = "https://example.com"

func mustRegistry(t *testing.T, probes ...probe.Probe) *probe.Registry {
	t.Helper()
	reg, err := probe.NewRegistry(probes...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func resultIDs(run *finding.Run) []string {
	ids := make([]string, len(run.Results))
	for i, r := range run.Results {
		ids[i] = r.ProbeID
	}
	return ids
}

func TestRunAll_ResultsFollowRegistryOrder(t *testing.T) {
	// probe 2 finishes first, probe 1 finishes last
	reg := mustRegistry(t,
		testutil.Delayed("one", 120*time.Millisecond),
		testutil.Delayed("two", 1*time.Millisecond),
		testutil.Delayed("three", 60*time.Millisecond),
	)

	var order []string
	var mu sync.Mutex
	c := New(reg, DefaultOptions())
	c.OnProgress = func(_, _ int64, res probe.Result) {
		mu.Lock()
		order = append(order, res.ProbeID)
		mu.Unlock()
	}

	run, err := c.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := strings.Join(resultIDs(run), ","); got != "one,two,three" {
		t.Errorf("result order = %s, want one,two,three", got)
	}
	if got := strings.Join(order, ","); got != "two,three,one" {
		t.Errorf("completion order = %s, want two,three,one", got)
	}
	if run.Summary.Total != 3 || run.Summary.Passed != 3 {
		t.Errorf("summary = %+v", run.Summary)
	}
}

func TestRunAll_InvalidTargetShortCircuits(t *testing.T) {
	for _, bad := range []string{"not a url", "", "ftp://example.com", "example.com"} {
		t.Run(fmt.Sprintf("%q", bad), func(t *testing.T) {
			spy := &testutil.SpyProbe{ID: "spy"}
			stub := testutil.Stub("stub", probe.OutcomePass)
			reg := mustRegistry(t, spy, stub)

			run, err := RunAll(context.Background(), bad, reg, DefaultOptions())
			if !errors.Is(err, probe.ErrInvalidTarget) {
				t.Fatalf("err = %v, want ErrInvalidTarget", err)
			}
			if run == nil {
				t.Fatal("expected a run describing the rejection")
			}
			if len(run.Results) != 1 {
				t.Fatalf("len(results) = %d, want 1", len(run.Results))
			}
			res := run.Results[0]
			if res.Outcome != probe.OutcomeError {
				t.Errorf("outcome = %s, want error", res.Outcome)
			}
			if res.ProbeID != ValidationProbe.ID {
				t.Errorf("probe id = %s", res.ProbeID)
			}
			if len(spy.Targets()) != 0 || stub.Calls() != 0 {
				t.Error("no probe may run for an invalid target")
			}
			if run.Summary != (finding.Summary{Total: 1, Errored: 1}) {
				t.Errorf("summary = %+v", run.Summary)
			}
			if !errors.Is(Classify(res), probe.ErrInvalidTarget) {
				t.Errorf("Classify = %v", Classify(res))
			}
		})
	}
}

func TestRunAll_TimeoutYieldsErrorAndDiscardsLateResult(t *testing.T) {
	hang := testutil.Hanging("hang")
	defer hang.Release()
	reg := mustRegistry(t, testutil.Stub("fast", probe.OutcomeFail), hang)

	timeout := 80 * time.Millisecond
	var run *finding.Run
	testutil.AssertTimeout(t, "run with hanging probe", 2*time.Second, func() {
		var err error
		run, err = RunAll(context.Background(), target, reg, Options{PerProbeTimeout: timeout})
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	})

	res := run.Results[1]
	if res.Outcome != probe.OutcomeError {
		t.Fatalf("outcome = %s, want error", res.Outcome)
	}
	if res.Summary != "timed out after 80ms" {
		t.Errorf("summary = %q", res.Summary)
	}
	if res.DurationMs < 70 || res.DurationMs > 1000 {
		t.Errorf("duration = %dms, want about %dms", res.DurationMs, timeout.Milliseconds())
	}
	if !IsTimeout(res) || !errors.Is(Classify(res), ErrProbeTimeout) {
		t.Error("expected result to classify as timeout")
	}
	if run.Results[0].Outcome != probe.OutcomeFail {
		t.Errorf("sibling outcome = %s, want fail", run.Results[0].Outcome)
	}

	hang.Release()
	deadline := time.Now().Add(time.Second)
	for !hang.Finished() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := run.Results[1]; got.Outcome != probe.OutcomeError || got.Summary != res.Summary {
		t.Errorf("late completion leaked into run: %+v", got)
	}
}

func TestRunAll_PanicIsIsolated(t *testing.T) {
	reg := mustRegistry(t,
		testutil.Stub("before", probe.OutcomePass),
		&testutil.PanickingProbe{ID: "boom", Value: "kaboom"},
		testutil.Stub("after", probe.OutcomeFail),
	)

	run, err := RunAll(context.Background(), target, reg, DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(run.Results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(run.Results))
	}
	if run.Results[0].Outcome != probe.OutcomePass || run.Results[2].Outcome != probe.OutcomeFail {
		t.Errorf("siblings affected: %+v", run.Results)
	}
	boom := run.Results[1]
	if boom.Outcome != probe.OutcomeError || boom.ProbeID != "boom" {
		t.Errorf("panicking probe result = %+v", boom)
	}
	if !strings.Contains(boom.Summary, "kaboom") || !errors.Is(Classify(boom), ErrProbePanic) {
		t.Errorf("summary = %q", boom.Summary)
	}
}

func TestRunAll_InvalidOutcomeBecomesError(t *testing.T) {
	bad := probe.Func(probe.Descriptor{ID: "bad", DisplayName: "Bad"}, func(context.Context, probe.Target) probe.Result {
		return probe.Result{Outcome: "maybe", Summary: "unsure", Trace: "GET /"}
	})
	run, err := RunAll(context.Background(), target, mustRegistry(t, bad), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	res := run.Results[0]
	if res.Outcome != probe.OutcomeError || !errors.Is(Classify(res), ErrInvalidOutcome) {
		t.Errorf("result = %+v", res)
	}
	if res.Trace != "GET /" {
		t.Errorf("trace = %q, want original trace preserved", res.Trace)
	}
}

func TestRunAll_StampsIdentityAndDuration(t *testing.T) {
	anon := probe.Func(probe.Descriptor{ID: "real-id", DisplayName: "Real Name"}, func(context.Context, probe.Target) probe.Result {
		res := probe.Pass("fine", "", "")
		res.ProbeID = "spoofed"
		res.DurationMs = -5
		return res
	})
	run, err := RunAll(context.Background(), target, mustRegistry(t, anon), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := run.Results[0]
	if res.ProbeID != "real-id" || res.DisplayName != "Real Name" {
		t.Errorf("identity = %s/%s", res.ProbeID, res.DisplayName)
	}
	if res.DurationMs < 0 {
		t.Errorf("duration = %d", res.DurationMs)
	}
}

func TestRunAll_MaxConcurrency(t *testing.T) {
	var gauge testutil.ConcurrencyGauge
	var probes []probe.Probe
	for i := 0; i < 10; i++ {
		probes = append(probes, gauge.Wrap(testutil.Delayed(fmt.Sprintf("p%d", i), 30*time.Millisecond)))
	}
	reg := mustRegistry(t, probes...)

	run, err := RunAll(context.Background(), target, reg, Options{MaxConcurrency: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Results) != 10 {
		t.Fatalf("len(results) = %d", len(run.Results))
	}
	if peak := gauge.Peak(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestRunAll_DefaultConcurrencyIsFullyParallel(t *testing.T) {
	var gauge testutil.ConcurrencyGauge
	var probes []probe.Probe
	for i := 0; i < 6; i++ {
		probes = append(probes, gauge.Wrap(testutil.Delayed(fmt.Sprintf("p%d", i), 100*time.Millisecond)))
	}

	start := time.Now()
	_, err := RunAll(context.Background(), target, mustRegistry(t, probes...), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("elapsed %v; probes did not run in parallel", elapsed)
	}
	if gauge.Peak() != 6 {
		t.Errorf("peak = %d, want 6", gauge.Peak())
	}
}

func TestRunAll_TimeoutReleasesSlot(t *testing.T) {
	hang := testutil.Hanging("hang")
	defer hang.Release()
	after := testutil.Stub("after", probe.OutcomePass)
	reg := mustRegistry(t, hang, after)

	run, err := RunAll(context.Background(), target, reg, Options{PerProbeTimeout: 50 * time.Millisecond, MaxConcurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Results[1].Outcome != probe.OutcomePass {
		t.Errorf("queued probe did not run after timeout: %+v", run.Results[1])
	}
}

func TestRunAll_EmptyRegistry(t *testing.T) {
	run, err := RunAll(context.Background(), target, mustRegistry(t), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Results) != 0 || run.Summary != (finding.Summary{}) {
		t.Errorf("run = %+v", run)
	}
	if run.CompletedAt.Before(run.StartedAt) {
		t.Error("completedAt before startedAt")
	}
}

func TestRunAll_CallerCancellationFillsEverySlot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hang := testutil.Hanging("slow")
	defer hang.Release()
	reg := mustRegistry(t,
		hang,
		testutil.Stub("queued-1", probe.OutcomePass),
		testutil.Stub("queued-2", probe.OutcomePass),
	)
	time.AfterFunc(30*time.Millisecond, cancel)

	run, err := RunAll(ctx, target, reg, Options{MaxConcurrency: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Results) != 3 {
		t.Fatalf("len(results) = %d", len(run.Results))
	}
	for _, res := range run.Results {
		if res.Outcome != probe.OutcomeError || !errors.Is(Classify(res), ErrRunCancelled) {
			t.Errorf("%s: %+v", res.ProbeID, res)
		}
	}
}

func TestRunAll_NoGoroutineLeakForWellBehavedProbes(t *testing.T) {
	tracker := testutil.TrackGoroutines()
	reg := mustRegistry(t,
		testutil.Delayed("a", 500*time.Millisecond),
		testutil.Stub("b", probe.OutcomePass),
	)
	if _, err := RunAll(context.Background(), target, reg, Options{PerProbeTimeout: 20 * time.Millisecond}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	tracker.CheckLeaks(t, 2)
}

func TestRunAll_TimestampsAreUTC(t *testing.T) {
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	var tick atomic.Int64
	c := New(mustRegistry(t, testutil.Stub("a", probe.OutcomePass)), DefaultOptions(),
		WithClock(func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }))

	run, err := c.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.StartedAt.Location() != time.UTC || run.CompletedAt.Location() != time.UTC {
		t.Error("timestamps must be UTC")
	}
	if run.Duration() != time.Second {
		t.Errorf("duration = %v, want 1s", run.Duration())
	}
}

type recordingHook struct {
	mu       sync.Mutex
	started  int
	probes   []string
	finished *finding.Run
}

func (h *recordingHook) OnRunStart(context.Context, string, []probe.Descriptor) {
	h.mu.Lock()
	h.started++
	h.mu.Unlock()
}

func (h *recordingHook) OnProbeComplete(_ context.Context, _ string, res probe.Result) {
	h.mu.Lock()
	h.probes = append(h.probes, res.ProbeID)
	h.mu.Unlock()
}

func (h *recordingHook) OnRunComplete(_ context.Context, run *finding.Run) {
	h.mu.Lock()
	h.finished = run
	h.mu.Unlock()
}

func TestCoordinator_Hooks(t *testing.T) {
	hook := &recordingHook{}
	c := New(mustRegistry(t, testutil.Stub("a", probe.OutcomePass), testutil.Stub("b", probe.OutcomeFail)), DefaultOptions(), WithHooks(hook))

	run, err := c.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hook.started != 1 || len(hook.probes) != 2 || hook.finished != run {
		t.Errorf("hook saw started=%d probes=%v finished=%v", hook.started, hook.probes, hook.finished != nil)
	}
}

func TestOptions_Resolve(t *testing.T) {
	o := Options{}.WithDefaults(13)
	if o.PerProbeTimeout != 10*time.Second || o.MaxConcurrency != 13 {
		t.Errorf("defaults = %+v", o)
	}
	if o := (Options{MaxConcurrency: 50}).WithDefaults(4); o.MaxConcurrency != 4 {
		t.Errorf("clamped = %d, want 4", o.MaxConcurrency)
	}
	if o := (Options{}).WithDefaults(0); o.MaxConcurrency != 1 {
		t.Errorf("empty registry concurrency = %d, want 1", o.MaxConcurrency)
	}
}
