package runner

import (
	"context"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
)

// Hook observes a run. OnProbeComplete is called from probe goroutines, so
// implementations must be safe for concurrent use.
type Hook interface {
	OnRunStart(ctx context.Context, target string, probes []probe.Descriptor)
	OnProbeComplete(ctx context.Context, target string, res probe.Result)
	OnRunComplete(ctx context.Context, run *finding.Run)
}

type hooks []Hook

func (hs hooks) runStart(ctx context.Context, target string, descs []probe.Descriptor) {
	for _, h := range hs {
		h.OnRunStart(ctx, target, descs)
	}
}

func (hs hooks) probeComplete(ctx context.Context, target string, res probe.Result) {
	for _, h := range hs {
		h.OnProbeComplete(ctx, target, res)
	}
}

func (hs hooks) runComplete(ctx context.Context, run *finding.Run) {
	for _, h := range hs {
		h.OnRunComplete(ctx, run)
	}
}
