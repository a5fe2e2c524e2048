package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/casatester/casatester/pkg/cli"
	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/hooks"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/report"
	"github.com/casatester/casatester/pkg/runner"
	"github.com/casatester/casatester/pkg/ui"
)

const formatConsole = "console"

type runFlags struct {
	commonFlags
	target      string
	timeout     time.Duration
	concurrency int
	probes      string
	format      string
	output      string
	noSave      bool
	browser     bool
	scripts     string
	metricsAddr string
	otlp        string
}

func runAssessment(ctx context.Context, s *streams, args []string) int {
	var f runFlags
	fs := newFlagSet("run", s)
	f.commonFlags.register(fs)
	fs.StringVar(&f.target, "u", "", "Target URL (required)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Per-probe timeout (default from config, 10s)")
	fs.IntVar(&f.concurrency, "c", 0, "Probes executing at once (0 = all)")
	fs.StringVar(&f.probes, "probes", "", "Comma-separated probe ids to run (default all)")
	fs.StringVar(&f.format, "format", formatConsole, "Output format: console, json, text, markdown, pdf")
	fs.StringVar(&f.output, "o", "", "Write the report to this file")
	fs.BoolVar(&f.noSave, "no-save", false, "Do not save the run to history")
	fs.BoolVar(&f.browser, "browser", false, "Inspect browser storage with headless Chrome")
	fs.StringVar(&f.scripts, "scripts", "", "Directory of *.tengo probes to add")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.StringVar(&f.otlp, "otlp", "", "Export traces to this OTLP/gRPC endpoint (e.g. localhost:4317)")

	set, err := parseFlags(fs, args)
	if err != nil {
		return usageCode(err)
	}
	if f.target == "" {
		fmt.Fprintln(s.err, "error: -u URL is required")
		fs.Usage()
		return cli.ExitUsage
	}
	if _, err := probe.ParseTarget(f.target); err != nil {
		fmt.Fprintf(s.err, "error: %v\n", err)
		return cli.ExitUsage
	}
	if f.format != formatConsole {
		if _, err := report.New(f.format, report.Options{}); err != nil {
			fmt.Fprintf(s.err, "error: %v\n", err)
			return cli.ExitUsage
		}
	}

	e, err := f.setup(s)
	if err != nil {
		fmt.Fprintf(s.err, "error: %v\n", err)
		return cli.ExitInternal
	}
	f.applyOverrides(e, set)
	if err := e.cfg.Validate(); err != nil {
		return e.fail(cli.ExitUsage, "%v", err)
	}
	return e.assess(ctx, &f)
}

// applyOverrides copies explicitly given flags over the config file.
func (f *runFlags) applyOverrides(e *env, set map[string]bool) {
	c := e.cfg
	if set["timeout"] {
		c.Runner.Timeout = f.timeout
	}
	if set["c"] {
		c.Runner.Concurrency = f.concurrency
	}
	if set["probes"] {
		c.Runner.Probes = cli.SplitList(f.probes)
	}
	if set["browser"] {
		c.Browser.Enabled = f.browser
	}
	if set["scripts"] {
		c.Scripts.Dir = f.scripts
	}
	if set["metrics-addr"] {
		c.Telemetry.MetricsAddr = f.metricsAddr
	}
	if set["otlp"] {
		c.Telemetry.OTLPEndpoint = f.otlp
	}
}

func (e *env) assess(ctx context.Context, f *runFlags) int {
	client, err := e.newClient()
	if err != nil {
		return e.fail(cli.ExitInternal, "network client: %v", err)
	}
	defer client.CloseIdleConnections()

	reg, err := e.registry(client)
	switch {
	case errors.Is(err, probe.ErrUnknownProbe):
		return e.fail(cli.ExitUsage, "%v (see 'casatester probes')", err)
	case err != nil:
		return e.fail(cli.ExitInternal, "loading probes: %v", err)
	}

	runHooks := []runner.Hook{hooks.NewLoggerHook(e.logger)}
	if addr := e.cfg.Telemetry.MetricsAddr; addr != "" {
		prom, err := hooks.NewPrometheusHook()
		if err != nil {
			return e.fail(cli.ExitInternal, "metrics: %v", err)
		}
		stop, err := e.serveHTTP(addr, prom.Handler())
		if err != nil {
			return e.fail(cli.ExitInternal, "metrics listener: %v", err)
		}
		defer stop()
		e.logger.Info("serving metrics", "addr", addr, "path", "/metrics")
		runHooks = append(runHooks, prom)
	}
	if endpoint := e.cfg.Telemetry.OTLPEndpoint; endpoint != "" {
		tracer, err := hooks.NewOTelHook(ctx, hooks.OTelOptions{
			Endpoint:    endpoint,
			ServiceName: e.cfg.Telemetry.ServiceName,
			Insecure:    e.cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			return e.fail(cli.ExitInternal, "tracing: %v", err)
		}
		defer func() {
			if err := tracer.Shutdown(context.Background()); err != nil {
				e.logger.Warn("flush traces", "error", err)
			}
		}()
		runHooks = append(runHooks, tracer)
	}

	coord := runner.New(reg, e.cfg.RunnerOptions(), runner.WithHooks(runHooks...), runner.WithLogger(e.logger))
	var progress *ui.Progress
	if f.format == formatConsole && f.output == "" && ui.IsTerminal(e.err) {
		progress = ui.NewProgress(e.err)
		coord.OnProgress = progress.Update
	}

	run, err := coord.Run(ctx, f.target)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return e.fail(cli.ExitUsage, "%v", err)
	}

	saveFailed := false
	var cmp *history.Comparison
	if !f.noSave {
		cmp, err = e.save(ctx, run)
		if err != nil {
			e.logger.Error("run not saved", "error", err)
			saveFailed = true
		}
	}

	if err := e.output(f, run, cmp); err != nil {
		return e.fail(cli.ExitInternal, "writing report: %v", err)
	}
	if saveFailed {
		return cli.ExitInternal
	}
	return cli.ExitCode(run)
}

// save appends run and compares it with the previous run for the same
// target, if any.
func (e *env) save(ctx context.Context, run *finding.Run) (*history.Comparison, error) {
	store, err := e.openHistory(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	prevID, err := previousRun(ctx, store, run.Target)
	if err != nil {
		return nil, err
	}

	id, err := store.Append(ctx, run)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("run saved", "id", id)

	if prevID == "" {
		return nil, nil
	}
	prev, err := store.Get(ctx, prevID)
	if err != nil {
		e.logger.Warn("previous run unreadable", "id", prevID, "error", err)
		return nil, nil
	}
	c := history.Compare(prev, run)
	return &c, nil
}

// previousRun finds the newest saved run for target among the most recent
// defaults.HistoryListLimit entries. It returns "" when there is none.
func previousRun(ctx context.Context, store history.Store, target string) (history.RunID, error) {
	entries, err := store.List(ctx, defaults.HistoryListLimit)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.Target == target {
			return entry.ID, nil
		}
	}
	return "", nil
}

func (e *env) output(f *runFlags, run *finding.Run, cmp *history.Comparison) error {
	format := f.format
	if format == formatConsole && f.output != "" {
		format = report.FormatJSON
	}
	if format == formatConsole {
		ui.PrintRun(e.out, run)
		if cmp != nil {
			ui.PrintComparison(e.out, *cmp)
		}
		return nil
	}

	exp, err := report.New(format, report.Options{Title: e.cfg.Report.Title, Author: e.cfg.Report.Author})
	if err != nil {
		return err
	}
	if f.output == "" || f.output == "-" {
		return exp.Export(e.out, run)
	}
	return writeReport(f.output, exp, run)
}

// writeReport exports to path, removing a partially written file on error.
func writeReport(path string, exp report.Exporter, run *finding.Run) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exp.Export(file, run); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}
