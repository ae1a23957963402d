package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	loopRunTotal      *prometheus.CounterVec
	loopRunDuration   prometheus.Histogram
	loopIterations    prometheus.Histogram
	maxIterationsHits prometheus.Counter

	providerCallTotal    *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec

	registeredTools prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			loopRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_loop_run_total",
					Help: "Total tool-calling loop runs by terminal state.",
				},
				[]string{"state"},
			),
			loopRunDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "tool_loop_run_duration_seconds",
					Help:    "Tool-calling loop duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			loopIterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "tool_loop_iterations",
					Help:    "Iterations consumed per tool-calling loop run.",
					Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 10},
				},
			),
			maxIterationsHits: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tool_loop_max_iterations_total",
					Help: "Loop runs terminated by the iteration ceiling.",
				},
			),
			providerCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_call_total",
					Help: "Total provider chat calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			providerCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "provider_call_duration_seconds",
					Help:    "Provider chat call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			registeredTools: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "registered_tools",
					Help: "Tools currently held by the registry.",
				},
			),
		}

		prometheus.MustRegister(
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.loopRunTotal,
			m.loopRunDuration,
			m.loopIterations,
			m.maxIterationsHits,
			m.providerCallTotal,
			m.providerCallDuration,
			m.registeredTools,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

func RecordLoopRun(state string, duration time.Duration, iterations int) {
	m := getMetrics()
	m.loopRunTotal.WithLabelValues(state).Inc()
	m.loopRunDuration.Observe(duration.Seconds())
	m.loopIterations.Observe(float64(iterations))
	if state == "max_iterations" {
		m.maxIterationsHits.Inc()
	}
}

func RecordProviderCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.providerCallTotal.WithLabelValues(provider, status).Inc()
	m.providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func SetRegisteredTools(count int) {
	m := getMetrics()
	m.registeredTools.Set(float64(count))
}
