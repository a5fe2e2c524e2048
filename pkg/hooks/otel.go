package hooks

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/duration"
	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/runner"
)

// Compile-time interface check.
var _ runner.Hook = (*OTelHook)(nil)

// OTelOptions configures the OTLP exporter.
type OTelOptions struct {
	// Endpoint is the OTLP/gRPC collector address (e.g., "localhost:4317").
	Endpoint string

	// ServiceName defaults to "casatester".
	ServiceName string

	// Insecure disables transport security towards the collector.
	Insecure bool

	// Headers are sent with every export request.
	Headers map[string]string
}

// OTelHook emits a casatester.run span per run with one child span per
// probe. Probe spans are back-dated from the result duration since probes
// report only on completion.
type OTelHook struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer

	mu   sync.Mutex
	runs map[string][]runSpan
}

type runSpan struct {
	ctx  context.Context
	span trace.Span
}

// NewOTelHook connects an OTLP/gRPC exporter. Connection failures surface
// at export time and never block a run.
func NewOTelHook(ctx context.Context, opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
	)
	return NewOTelHookWithProvider(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)), nil
}

// NewOTelHookWithProvider uses an existing tracer provider.
func NewOTelHookWithProvider(tp *sdktrace.TracerProvider) *OTelHook {
	return &OTelHook{
		provider: tp,
		tracer:   tp.Tracer("casatester/runner"),
		runs:     make(map[string][]runSpan),
	}
}

func (h *OTelHook) OnRunStart(ctx context.Context, target string, probes []probe.Descriptor) {
	ctx, span := h.tracer.Start(ctx, "casatester.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("target", target),
			attribute.Int("probes", len(probes)),
		))
	h.mu.Lock()
	// concurrent runs against one target share the oldest open parent
	h.runs[target] = append(h.runs[target], runSpan{ctx: ctx, span: span})
	h.mu.Unlock()
}

func (h *OTelHook) OnProbeComplete(ctx context.Context, target string, res probe.Result) {
	h.mu.Lock()
	if open := h.runs[target]; len(open) > 0 {
		ctx = open[0].ctx
	}
	h.mu.Unlock()

	end := time.Now()
	start := end.Add(-time.Duration(res.DurationMs) * time.Millisecond)
	_, span := h.tracer.Start(ctx, "casatester.probe",
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("probe.id", res.ProbeID),
			attribute.String("probe.outcome", string(res.Outcome)),
		))
	if res.IsError() {
		span.SetStatus(codes.Error, res.Summary)
	}
	span.End(trace.WithTimestamp(end))
}

func (h *OTelHook) OnRunComplete(_ context.Context, run *finding.Run) {
	h.mu.Lock()
	open := h.runs[run.Target]
	if len(open) == 0 {
		h.mu.Unlock()
		return
	}
	rs := open[0]
	if len(open) == 1 {
		delete(h.runs, run.Target)
	} else {
		h.runs[run.Target] = open[1:]
	}
	h.mu.Unlock()
	rs.span.SetAttributes(
		attribute.Int("total", run.Summary.Total),
		attribute.Int("passed", run.Summary.Passed),
		attribute.Int("failed", run.Summary.Failed),
		attribute.Int("errored", run.Summary.Errored),
		attribute.Float64("pass_rate_percent", run.Summary.PassRatePercent),
	)
	if run.Summary.Errored > 0 {
		rs.span.SetStatus(codes.Error, "probes errored")
	}
	rs.span.End()
}

// Shutdown flushes pending spans and stops the exporter.
func (h *OTelHook) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration.Shutdown)
		defer cancel()
	}
	return h.provider.Shutdown(ctx)
}
