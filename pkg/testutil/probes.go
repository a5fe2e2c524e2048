package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casatester/casatester/pkg/probe"
)

// StubProbe returns a fixed outcome after an optional delay. It honours
// context cancellation during the delay.
type StubProbe struct {
	ID      string
	Name    string
	Outcome probe.Outcome
	Delay   time.Duration

	calls atomic.Int64
}

// Stub returns a StubProbe named after id.
func Stub(id string, outcome probe.Outcome) *StubProbe {
	return &StubProbe{ID: id, Name: "Stub " + id, Outcome: outcome}
}

// Delayed returns a passing StubProbe that sleeps for d first.
func Delayed(id string, d time.Duration) *StubProbe {
	s := Stub(id, probe.OutcomePass)
	s.Delay = d
	return s
}

func (s *StubProbe) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: s.ID, DisplayName: s.Name}
}

func (s *StubProbe) Execute(ctx context.Context, target probe.Target) probe.Result {
	s.calls.Add(1)
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return probe.FromError(ctx.Err(), "")
		}
	}
	return probe.Result{
		Outcome: s.Outcome,
		Summary: s.ID + " " + string(s.Outcome),
		Trace:   "stub " + target.String(),
	}
}

// Calls returns how many times Execute ran.
func (s *StubProbe) Calls() int64 { return s.calls.Load() }

// SpyProbe records every target it is executed against.
type SpyProbe struct {
	ID string

	mu      sync.Mutex
	targets []string
}

func (s *SpyProbe) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: s.ID, DisplayName: "Spy " + s.ID}
}

func (s *SpyProbe) Execute(_ context.Context, target probe.Target) probe.Result {
	s.mu.Lock()
	s.targets = append(s.targets, target.String())
	s.mu.Unlock()
	return probe.Pass("spied", "", "")
}

// Targets returns the recorded targets.
func (s *SpyProbe) Targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.targets...)
}

// HangingProbe ignores its context and blocks until Release is called,
// then reports Pass. It models a probe whose network call never returns.
type HangingProbe struct {
	ID string

	once    sync.Once
	release chan struct{}
	started chan struct{}
	done    atomic.Bool
}

// Hanging returns a HangingProbe.
func Hanging(id string) *HangingProbe {
	return &HangingProbe{ID: id, release: make(chan struct{}), started: make(chan struct{}, 1)}
}

func (h *HangingProbe) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: h.ID, DisplayName: "Hanging " + h.ID}
}

func (h *HangingProbe) Execute(context.Context, probe.Target) probe.Result {
	select {
	case h.started <- struct{}{}:
	default:
	}
	<-h.release
	h.done.Store(true)
	return probe.Pass("late result", "", "")
}

// Started is signalled when Execute begins.
func (h *HangingProbe) Started() <-chan struct{} { return h.started }

// Release unblocks Execute.
func (h *HangingProbe) Release() { h.once.Do(func() { close(h.release) }) }

// Finished reports whether Execute has returned.
func (h *HangingProbe) Finished() bool { return h.done.Load() }

// PanickingProbe panics with Value inside Execute.
type PanickingProbe struct {
	ID    string
	Value any
}

func (p *PanickingProbe) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: p.ID, DisplayName: "Panicking " + p.ID}
}

func (p *PanickingProbe) Execute(context.Context, probe.Target) probe.Result {
	panic(p.Value)
}

// ConcurrencyGauge wraps probes and tracks the peak number executing at once.
type ConcurrencyGauge struct {
	current atomic.Int32
	peak    atomic.Int32
}

// Wrap returns a probe that delegates to p while being counted.
func (g *ConcurrencyGauge) Wrap(p probe.Probe) probe.Probe {
	return probe.Func(p.Descriptor(), func(ctx context.Context, t probe.Target) probe.Result {
		cur := g.current.Add(1)
		for {
			peak := g.peak.Load()
			if cur <= peak || g.peak.CompareAndSwap(peak, cur) {
				break
			}
		}
		defer g.current.Add(-1)
		return p.Execute(ctx, t)
	})
}

// Peak returns the highest observed concurrency.
func (g *ConcurrencyGauge) Peak() int32 { return g.peak.Load() }
