// Package metrics exposes Prometheus collectors for generation runs.
//
// Every Record method is safe on a nil *Collector, so the pipeline and the
// gateways can run without metrics in tests and in the CLI.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the run, gateway and stage metrics.
type Collector struct {
	runsStarted      prometheus.Counter
	runsFinished     *prometheus.CounterVec
	runDuration      prometheus.Histogram
	fallbacks        *prometheus.CounterVec
	gatewayDuration  *prometheus.HistogramVec
	stageTransitions *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "i2v_runs_started_total",
			Help: "Total number of generation runs started",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "i2v_runs_finished_total",
			Help: "Total number of generation runs finished, by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "i2v_run_duration_seconds",
			Help:    "Wall time from run start to the timeline join",
			Buckets: []float64{1, 2.5, 5, 10, 15, 30, 60, 120, 300},
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "i2v_provider_fallbacks_total",
			Help: "Total number of calls served by the local fallback, by reason",
		}, []string{"reason"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "i2v_gateway_duration_seconds",
			Help:    "Provider gateway call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "i2v_stage_transitions_total",
			Help: "Total number of simulated stage transitions, by stage",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		c.runsStarted,
		c.runsFinished,
		c.runDuration,
		c.fallbacks,
		c.gatewayDuration,
		c.stageTransitions,
	)
	return c
}

func (c *Collector) RecordRunStarted() {
	if c == nil {
		return
	}
	c.runsStarted.Inc()
}

// RecordRunFinished records the outcome and total duration of a run.
func (c *Collector) RecordRunFinished(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.runsFinished.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(d.Seconds())
}

// RecordFallback counts a call that was served by the local fallback.
// reason is "no_credential" or "provider_error".
func (c *Collector) RecordFallback(reason string) {
	if c == nil {
		return
	}
	c.fallbacks.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordGateway(provider string, d time.Duration) {
	if c == nil {
		return
	}
	c.gatewayDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (c *Collector) RecordStage(stage string) {
	if c == nil {
		return
	}
	c.stageTransitions.WithLabelValues(stage).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
