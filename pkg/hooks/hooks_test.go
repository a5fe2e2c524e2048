package hooks

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/runner"
)

const target = "https://shop.example/"

func results() []probe.Result {
	return []probe.Result{
		{ProbeID: "ssl-tls", Outcome: probe.OutcomePass, Summary: "TLS 1.3", DurationMs: 120},
		{ProbeID: "xss", Outcome: probe.OutcomeFail, Summary: "reflected", DurationMs: 300},
		{ProbeID: "api-security", Outcome: probe.OutcomeError, Summary: "timed out", DurationMs: 10_000},
	}
}

// replay drives h through one run the way the coordinator does.
func replay(h runner.Hook) *finding.Run {
	ctx := context.Background()
	rs := results()
	descs := make([]probe.Descriptor, len(rs))
	for i, r := range rs {
		descs[i] = probe.Descriptor{ID: r.ProbeID}
	}
	h.OnRunStart(ctx, target, descs)
	for _, r := range rs {
		h.OnProbeComplete(ctx, target, r)
	}
	now := time.Now().UTC()
	run := &finding.Run{Target: target, StartedAt: now.Add(-time.Second), CompletedAt: now, Results: rs, Summary: finding.Summarize(rs)}
	h.OnRunComplete(ctx, run)
	return run
}

func TestLoggerHook(t *testing.T) {
	var buf bytes.Buffer
	h := NewLoggerHook(slog.New(slog.NewTextHandler(&buf, nil)))
	replay(h)

	out := buf.String()
	assert.Contains(t, out, `level=INFO msg="assessment started" target=https://shop.example/ probes=3`)
	assert.Contains(t, out, `level=INFO msg="probe completed" target=https://shop.example/ probe=xss outcome=fail`)
	assert.Contains(t, out, `level=WARN msg="probe completed" target=https://shop.example/ probe=api-security outcome=error`)
	assert.Contains(t, out, `msg="assessment completed" target=https://shop.example/ passed=1 failed=1 errored=1 pass_rate=33.3`)
}

func TestPrometheusHook(t *testing.T) {
	h, err := NewPrometheusHook()
	require.NoError(t, err)
	replay(h)
	replay(h)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.runsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.resultsTotal.WithLabelValues("xss", "fail")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.resultsTotal.WithLabelValues("xss", "pass")))
	assert.Equal(t, 33.3, testutil.ToFloat64(h.lastPassRate.WithLabelValues(target)))
	assert.Equal(t, 3, testutil.CollectAndCount(h.probeDuration))

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	for _, name := range []string{
		"casatester_runs_total 2",
		`casatester_probe_results_total{outcome="error",probe="api-security"} 2`,
		`casatester_probe_duration_seconds_bucket{probe="ssl-tls",le="0.25"} 2`,
		`casatester_last_pass_rate_percent{target="https://shop.example/"} 33.3`,
	} {
		assert.True(t, strings.Contains(string(body), name), "missing %s", name)
	}
}

func TestOTelHook_SpansPerRunAndProbe(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	h := NewOTelHookWithProvider(tp)
	replay(h)
	require.NoError(t, h.Shutdown(context.Background()))

	spans := rec.Ended()
	require.Len(t, spans, 4)

	var run sdktrace.ReadOnlySpan
	probes := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		if s.Name() == "casatester.run" {
			run = s
			continue
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "probe.id" {
				probes[kv.Value.AsString()] = s
			}
		}
	}
	require.NotNil(t, run)
	require.Len(t, probes, 3)
	for id, s := range probes {
		assert.Equal(t, run.SpanContext().SpanID(), s.Parent().SpanID(), id)
	}
	assert.Equal(t, codes.Error, probes["api-security"].Status().Code)
	assert.Equal(t, codes.Unset, probes["xss"].Status().Code)
	assert.Equal(t, 300*time.Millisecond, probes["xss"].EndTime().Sub(probes["xss"].StartTime()))

	attrs := map[string]any{}
	for _, kv := range run.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, target, attrs["target"])
	assert.Equal(t, int64(3), attrs["total"])
	assert.Equal(t, int64(1), attrs["errored"])
	assert.Equal(t, codes.Error, run.Status().Code)
	assert.Empty(t, h.runs)
}

func TestOTelHook_UnknownRunIsIgnored(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	h := NewOTelHookWithProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	h.OnRunComplete(context.Background(), &finding.Run{Target: "https://other.example/"})
	assert.Empty(t, rec.Ended())
}

func TestHooks_WithCoordinator(t *testing.T) {
	reg, err := probe.NewRegistry(probe.Func(probe.Descriptor{ID: "ok", DisplayName: "OK"},
		func(ctx context.Context, target probe.Target) probe.Result {
			return probe.Pass("fine", "", "")
		}))
	require.NoError(t, err)

	prom, err := NewPrometheusHook()
	require.NoError(t, err)
	rec := tracetest.NewSpanRecorder()
	otelHook := NewOTelHookWithProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	c := runner.New(reg, runner.DefaultOptions(),
		runner.WithHooks(NewLoggerHook(slog.New(slog.DiscardHandler)), prom, otelHook))
	_, err = c.Run(context.Background(), "https://shop.example")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(prom.resultsTotal.WithLabelValues("ok", "pass")))
	assert.Equal(t, 100.0, testutil.ToFloat64(prom.lastPassRate.WithLabelValues("https://shop.example")))
	assert.Len(t, rec.Ended(), 2)
}
