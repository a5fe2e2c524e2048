// Package runner executes every probe of a registry against one target with
// bounded concurrency, per-probe deadlines and fault isolation.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
)

// ValidationProbe identifies the synthetic result of a run whose target
// failed validation.
var ValidationProbe = probe.Descriptor{ID: "target-validation", DisplayName: "Target Validation"}

// Coordinator runs a registry. It holds no per-run state and may serve
// concurrent runs.
type Coordinator struct {
	// Registry is the probe set to execute.
	Registry *probe.Registry

	// Options tune timeouts and concurrency.
	Options Options

	// Hooks observe run progress (metrics, tracing, logging).
	Hooks []Hook

	// Logger receives debug records per probe (default slog.Default()).
	Logger *slog.Logger

	// OnProgress is called after each probe result is settled.
	OnProgress func(completed, total int64, res probe.Result)

	// Clock returns the current time (default time.Now).
	Clock func() time.Time
}

// New creates a coordinator for reg with the given options.
func New(reg *probe.Registry, opts Options, options ...Option) *Coordinator {
	c := &Coordinator{Registry: reg, Options: opts}
	for _, o := range options {
		o(c)
	}
	return c
}

// RunAll executes every probe of reg against target.
//
// For a structurally invalid target no probe runs: the returned Run holds a
// single Error result and the error wraps probe.ErrInvalidTarget. Every
// other failure is recovered into that probe's Error result and RunAll
// returns a nil error.
func RunAll(ctx context.Context, target string, reg *probe.Registry, opts Options) (*finding.Run, error) {
	return New(reg, opts).Run(ctx, target)
}

// Run executes the registry against target. See RunAll.
func (c *Coordinator) Run(ctx context.Context, target string) (*finding.Run, error) {
	hs := hooks(c.Hooks)
	log := c.logger()

	tgt, err := probe.ParseTarget(target)
	if err != nil {
		now := c.now()
		res := probe.FromError(err, fmt.Sprintf("validate target %q", target)).WithIdentity(ValidationProbe)
		res.Summary = "Invalid target URL; no probes were run"
		res.Detail = err.Error()
		run := &finding.Run{
			Target:      target,
			StartedAt:   now,
			CompletedAt: now,
			Results:     []probe.Result{res},
			Summary:     finding.Summarize([]probe.Result{res}),
		}
		log.Warn("run rejected", slog.String("target", target), slog.String("error", err.Error()))
		hs.runStart(ctx, target, nil)
		hs.probeComplete(ctx, target, res)
		hs.runComplete(ctx, run)
		return run, err
	}

	var probes []probe.Probe
	if c.Registry != nil {
		probes = c.Registry.Probes()
	}
	descs := make([]probe.Descriptor, len(probes))
	for i, p := range probes {
		descs[i] = p.Descriptor()
	}
	opts := c.Options.WithDefaults(len(probes))

	startedAt := c.now()
	hs.runStart(ctx, tgt.String(), descs)
	log.Debug("run started",
		slog.String("target", tgt.String()),
		slog.Int("probes", len(probes)),
		slog.Int("concurrency", opts.MaxConcurrency),
		slog.Duration("timeout", opts.PerProbeTimeout))

	results := make([]probe.Result, len(probes))
	total := int64(len(probes))
	var completed int64
	settle := func(i int, res probe.Result) {
		results[i] = res
		n := atomic.AddInt64(&completed, 1)
		hs.probeComplete(ctx, tgt.String(), res)
		if c.OnProgress != nil {
			c.OnProgress(n, total, res)
		}
	}

	sem := make(chan struct{}, opts.MaxConcurrency)
	var wg sync.WaitGroup

	cancelRest := func(from int) {
		for j := from; j < len(probes); j++ {
			res := probe.FromError(fmt.Errorf("%w before start: %v", ErrRunCancelled, ctx.Err()), "")
			settle(j, res.WithIdentity(descs[j]))
		}
	}

launch:
	for i, p := range probes {
		if ctx.Err() != nil {
			cancelRest(i)
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			cancelRest(i)
			break launch
		}
		if ctx.Err() != nil {
			<-sem
			cancelRest(i)
			break
		}

		wg.Add(1)
		go func(i int, p probe.Probe) {
			defer wg.Done()
			defer func() { <-sem }()
			settle(i, c.execute(ctx, p, descs[i], tgt, opts.PerProbeTimeout))
		}(i, p)
	}
	wg.Wait()

	run := &finding.Run{
		Target:      tgt.String(),
		StartedAt:   startedAt,
		CompletedAt: c.now(),
		Results:     results,
		Summary:     finding.Summarize(results),
	}
	if run.CompletedAt.Before(run.StartedAt) {
		run.CompletedAt = run.StartedAt
	}
	hs.runComplete(ctx, run)
	log.Debug("run completed",
		slog.String("target", run.Target),
		slog.Int("passed", run.Summary.Passed),
		slog.Int("failed", run.Summary.Failed),
		slog.Int("errored", run.Summary.Errored))
	return run, nil
}

// execute runs one probe under its own deadline. The probe body runs in a
// separate goroutine so that a probe ignoring its context cannot hold the
// slot past the deadline; its late result lands in a buffered channel that
// nobody reads.
func (c *Coordinator) execute(ctx context.Context, p probe.Probe, desc probe.Descriptor, tgt probe.Target, timeout time.Duration) probe.Result {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := c.logger().With(slog.String("probe", desc.ID))
	start := time.Now()
	done := make(chan probe.Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("probe panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
				done <- probe.FromError(fmt.Errorf("%w: %v", ErrProbePanic, r), "")
			}
		}()
		done <- p.Execute(pctx, tgt)
	}()

	var res probe.Result
	select {
	case res = <-done:
		if !res.Outcome.Valid() {
			log.Warn("probe returned invalid outcome", slog.String("outcome", string(res.Outcome)))
			bad := probe.FromError(fmt.Errorf("%w %q", ErrInvalidOutcome, res.Outcome), res.Trace)
			bad.Detail = joinDetail(bad.Detail, res.Summary)
			res = bad
		}
	case <-pctx.Done():
		if ctx.Err() != nil {
			res = probe.FromError(fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err()), "")
		} else {
			res = probe.Errorf("", "timed out after %dms", timeout.Milliseconds())
			res.Detail = ErrProbeTimeout.Error()
		}
		log.Debug("probe abandoned", slog.String("reason", res.Summary))
	}

	res = res.WithIdentity(desc)
	res.DurationMs = time.Since(start).Milliseconds()
	if res.DurationMs < 0 {
		res.DurationMs = 0
	}
	return res
}

func (c *Coordinator) now() time.Time {
	if c.Clock != nil {
		return finding.Timestamp(c.Clock())
	}
	return finding.Timestamp(time.Now())
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func joinDetail(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n" + b
}

// IsTimeout reports whether res is a coordinator-synthesized timeout.
func IsTimeout(res probe.Result) bool {
	return res.Outcome == probe.OutcomeError && res.Detail == ErrProbeTimeout.Error()
}

// Classify maps a coordinator-synthesized Error result back to its sentinel,
// or nil for results produced by the probe itself.
func Classify(res probe.Result) error {
	if res.Outcome != probe.OutcomeError {
		return nil
	}
	for _, sentinel := range []error{ErrProbePanic, ErrInvalidOutcome, ErrRunCancelled} {
		if strings.HasPrefix(res.Summary, sentinel.Error()) {
			return sentinel
		}
	}
	if IsTimeout(res) {
		return ErrProbeTimeout
	}
	if res.ProbeID == ValidationProbe.ID {
		return probe.ErrInvalidTarget
	}
	return nil
}
