// Package telemetry exposes the sampler's own health as Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rusenback/dockerstats/internal/model"
	"github.com/rusenback/dockerstats/internal/sampler"
)

const namespace = "dockerstats"

// Exporter owns a private registry so tests and multiple instances never
// collide on the global one.
type Exporter struct {
	registry *prometheus.Registry

	// Sampler metrics
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	SamplesTotal     *prometheus.CounterVec
	RunningGauge     prometheus.Gauge
	TrackedGauge     prometheus.GaugeFunc
	UpdateChecks     *prometheus.CounterVec
	ActionsTotal     *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
}

// New registers every metric. tracked reports the number of containers with
// history and is read at scrape time.
func New(tracked func() int) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Exporter{
		registry: reg,

		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sampler_cycles_total",
				Help:      "Sampling cycles by result (ok/list_failed)",
			},
			[]string{"result"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sampler_cycle_duration_seconds",
				Help:      "Duration of a sampling cycle in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SamplesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sampler_samples_total",
				Help:      "Per-container samples by outcome (sampled/error/purged/dropped)",
			},
			[]string{"outcome"},
		),
		RunningGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "running_containers",
				Help:      "Running containers seen by the last successful cycle",
			},
		),
		TrackedGauge: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracked_containers",
				Help:      "Containers with retained history",
			},
			func() float64 { return float64(tracked()) },
		),
		UpdateChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "update_checks_total",
				Help:      "Image update checks by result (available/current/unknown)",
			},
			[]string{"result"},
		),
		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "control_actions_total",
				Help:      "Control actions by action and result",
			},
			[]string{"action", "result"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		RequestDurations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// ObserveCycle records one sampler report.
func (e *Exporter) ObserveCycle(r sampler.Report) {
	if r.ListFailed {
		e.CyclesTotal.WithLabelValues("list_failed").Inc()
		return
	}
	e.CyclesTotal.WithLabelValues("ok").Inc()
	e.CycleDuration.Observe(r.Duration.Seconds())
	e.RunningGauge.Set(float64(r.Running))
	e.SamplesTotal.WithLabelValues("sampled").Add(float64(r.Sampled))
	e.SamplesTotal.WithLabelValues("error").Add(float64(r.Errors))
	e.SamplesTotal.WithLabelValues("purged").Add(float64(r.Purged))
	e.SamplesTotal.WithLabelValues("dropped").Add(float64(r.Dropped))
}

// ObserveUpdateCheck records one update check result.
func (e *Exporter) ObserveUpdateCheck(result model.UpdateStatus) {
	e.UpdateChecks.WithLabelValues(result.String()).Inc()
}

// ObserveAction records the outcome of a control action.
func (e *Exporter) ObserveAction(action string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	e.ActionsTotal.WithLabelValues(action, result).Inc()
}

// Handler serves the registry in the exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Middleware counts requests per mux route template.
func (e *Exporter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		e.RequestDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
		e.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming handlers working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
