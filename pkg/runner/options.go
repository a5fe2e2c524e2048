package runner

import (
	"log/slog"
	"time"

	"github.com/casatester/casatester/pkg/duration"
	"github.com/casatester/casatester/pkg/probe"
)

// Options tune one run.
type Options struct {
	// PerProbeTimeout bounds each probe (default 10s).
	PerProbeTimeout time.Duration

	// MaxConcurrency bounds simultaneously executing probes
	// (default: registry size, i.e. fully parallel).
	MaxConcurrency int
}

// DefaultOptions returns options that resolve to the documented defaults.
func DefaultOptions() Options {
	return Options{PerProbeTimeout: duration.ProbeTimeout}
}

// WithDefaults fills defaults for a registry of n probes and clamps
// MaxConcurrency into [1, n].
func (o Options) WithDefaults(n int) Options {
	if o.PerProbeTimeout <= 0 {
		o.PerProbeTimeout = duration.ProbeTimeout
	}
	if o.MaxConcurrency <= 0 || o.MaxConcurrency > n {
		o.MaxConcurrency = n
	}
	if o.MaxConcurrency < 1 {
		o.MaxConcurrency = 1
	}
	return o
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHooks appends run observers.
func WithHooks(hooks ...Hook) Option {
	return func(c *Coordinator) { c.Hooks = append(c.Hooks, hooks...) }
}

// WithLogger sets the per-probe debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.Logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.Clock = now }
}

// WithProgress sets the callback fired after each settled result.
func WithProgress(fn func(completed, total int64, res probe.Result)) Option {
	return func(c *Coordinator) { c.OnProgress = fn }
}
