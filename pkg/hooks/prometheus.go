package hooks

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/runner"
)

// Compile-time interface check.
var _ runner.Hook = (*PrometheusHook)(nil)

// PrometheusHook records run metrics in its own registry. Serve Handler()
// to expose them for scraping.
type PrometheusHook struct {
	registry *prometheus.Registry

	runsTotal     prometheus.Counter
	resultsTotal  *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	lastPassRate  *prometheus.GaugeVec
}

// NewPrometheusHook creates the hook and registers its collectors.
func NewPrometheusHook() (*PrometheusHook, error) {
	h := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casatester_runs_total",
			Help: "Total number of completed assessment runs",
		}),
		resultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casatester_probe_results_total",
			Help: "Probe results by probe id and outcome",
		}, []string{"probe", "outcome"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casatester_probe_duration_seconds",
			Help:    "Probe execution time in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"probe"}),
		lastPassRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "casatester_last_pass_rate_percent",
			Help: "Pass rate of the most recent run per target",
		}, []string{"target"}),
	}
	for _, c := range []prometheus.Collector{h.runsTotal, h.resultsTotal, h.probeDuration, h.lastPassRate} {
		if err := h.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Registry exposes the collectors, mainly for tests.
func (h *PrometheusHook) Registry() *prometheus.Registry { return h.registry }

// Handler serves the registry in the Prometheus exposition format.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (h *PrometheusHook) OnRunStart(context.Context, string, []probe.Descriptor) {}

func (h *PrometheusHook) OnProbeComplete(_ context.Context, _ string, res probe.Result) {
	h.resultsTotal.WithLabelValues(res.ProbeID, string(res.Outcome)).Inc()
	h.probeDuration.WithLabelValues(res.ProbeID).Observe((time.Duration(res.DurationMs) * time.Millisecond).Seconds())
}

func (h *PrometheusHook) OnRunComplete(_ context.Context, run *finding.Run) {
	h.runsTotal.Inc()
	h.lastPassRate.WithLabelValues(run.Target).Set(run.Summary.PassRatePercent)
}
