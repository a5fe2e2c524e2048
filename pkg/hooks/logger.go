package hooks

import (
	"context"
	"log/slog"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/runner"
)

// Compile-time interface check.
var _ runner.Hook = (*LoggerHook)(nil)

// LoggerHook writes run progress to a slog.Logger. Error outcomes are
// logged at Warn, everything else at Info.
type LoggerHook struct {
	logger *slog.Logger
}

// NewLoggerHook returns a hook writing to logger (slog.Default() if nil).
func NewLoggerHook(logger *slog.Logger) *LoggerHook {
	return &LoggerHook{logger: orDefault(logger)}
}

func (h *LoggerHook) OnRunStart(ctx context.Context, target string, probes []probe.Descriptor) {
	h.logger.InfoContext(ctx, "assessment started",
		slog.String("target", target),
		slog.Int("probes", len(probes)))
}

func (h *LoggerHook) OnProbeComplete(ctx context.Context, target string, res probe.Result) {
	level := slog.LevelInfo
	if res.IsError() {
		level = slog.LevelWarn
	}
	h.logger.LogAttrs(ctx, level, "probe completed",
		slog.String("target", target),
		slog.String("probe", res.ProbeID),
		slog.String("outcome", string(res.Outcome)),
		slog.String("summary", res.Summary),
		slog.Int64("duration_ms", res.DurationMs))
}

func (h *LoggerHook) OnRunComplete(ctx context.Context, run *finding.Run) {
	h.logger.InfoContext(ctx, "assessment completed",
		slog.String("target", run.Target),
		slog.Int("passed", run.Summary.Passed),
		slog.Int("failed", run.Summary.Failed),
		slog.Int("errored", run.Summary.Errored),
		slog.Float64("pass_rate", run.Summary.PassRatePercent),
		slog.Duration("elapsed", run.Duration()))
}
