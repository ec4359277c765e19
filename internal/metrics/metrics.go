// Package metrics exposes Prometheus collectors for function runs and
// schedule reconciliation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry           *prometheus.Registry
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	reconcilesTotal    *prometheus.CounterVec
	reconcileDuration  *prometheus.HistogramVec
	scheduledFunctions prometheus.Gauge
	deploymentsTotal   *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Function invocations by outcome",
			},
			[]string{"function", "status"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Wall time of function processes",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"function"},
		),
		reconcilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedule_reconciles_total",
				Help:      "Schedule table reconciliations by operation and result",
			},
			[]string{"op", "result"},
		),
		reconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "schedule_reconcile_duration_seconds",
				Help:      "Duration of read-filter-write cycles against the schedule table",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		scheduledFunctions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduled_functions",
				Help:      "Tagged lines in the schedule table after the last successful write",
			},
		),
		deploymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "function_changes_total",
				Help:      "Changes observed in the functions directory",
			},
			[]string{"change"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.invocationsTotal,
		m.invocationDuration,
		m.reconcilesTotal,
		m.reconcileDuration,
		m.scheduledFunctions,
		m.deploymentsTotal,
		m.httpRequestsTotal,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordInvocation(function, status string, duration time.Duration) {
	m.invocationsTotal.WithLabelValues(function, status).Inc()
	m.invocationDuration.WithLabelValues(function).Observe(duration.Seconds())
}

func (m *Metrics) RecordReconcile(op, result string, duration time.Duration) {
	m.reconcilesTotal.WithLabelValues(op, result).Inc()
	m.reconcileDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Metrics) SetScheduled(count int) {
	m.scheduledFunctions.Set(float64(count))
}

func (m *Metrics) RecordFunctionChange(change string) {
	m.deploymentsTotal.WithLabelValues(change).Inc()
}

func (m *Metrics) RecordHTTPRequest(route string, code int) {
	m.httpRequestsTotal.WithLabelValues(route, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
