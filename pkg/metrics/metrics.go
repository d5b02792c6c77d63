// Package metrics exposes the fetch and load counters of a run through a
// Prometheus registry served on /metrics.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WessleyAI/vaarweggraph/pkg/mid"
)

// DefaultBuckets are the stage duration buckets (in seconds).
var DefaultBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}

// Registry holds the run metrics. A nil *Registry is valid and records
// nothing.
type Registry struct {
	registry *prometheus.Registry

	RecordsFetched  *prometheus.CounterVec
	FetchRequests   *prometheus.CounterVec
	NodesCreated    *prometheus.CounterVec
	EdgesDerived    *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	RunsTotal       *prometheus.CounterVec
	LastRunDuration prometheus.Gauge
	LastRunSuccess  prometheus.Gauge
}

// New creates a Registry on a fresh Prometheus registry.
func New() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.RecordsFetched = f.NewCounterVec(prometheus.CounterOpts{
		Name: "vaarweg_records_fetched_total",
		Help: "Records fetched from the data service",
	}, []string{"object_type"})

	r.FetchRequests = f.NewCounterVec(prometheus.CounterOpts{
		Name: "vaarweg_fetch_requests_total",
		Help: "HTTP requests made to the data service",
	}, []string{"status"})

	r.NodesCreated = f.NewCounterVec(prometheus.CounterOpts{
		Name: "vaarweg_nodes_created_total",
		Help: "Graph nodes written",
	}, []string{"label"})

	r.EdgesDerived = f.NewCounterVec(prometheus.CounterOpts{
		Name: "vaarweg_edges_derived_total",
		Help: "Derived relationships written by the chain passes",
	}, []string{"type"})

	r.StageDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaarweg_stage_duration_seconds",
		Help:    "Duration of each load stage",
		Buckets: DefaultBuckets,
	}, []string{"stage", "status"})

	r.RunsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "vaarweg_runs_total",
		Help: "Completed fetch and load runs",
	}, []string{"status"})

	r.LastRunDuration = f.NewGauge(prometheus.GaugeOpts{
		Name: "vaarweg_last_run_duration_seconds",
		Help: "Duration of the most recent run",
	})

	r.LastRunSuccess = f.NewGauge(prometheus.GaugeOpts{
		Name: "vaarweg_last_run_success",
		Help: "1 if the most recent run succeeded",
	})
	return r
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry { return r.registry }

// RecordFetched adds n records of an object type.
func (r *Registry) RecordFetched(objectType string, n int) {
	if r == nil {
		return
	}
	r.RecordsFetched.WithLabelValues(objectType).Add(float64(n))
}

// RecordRequest counts one data service request by HTTP status, or
// "error" when no response arrived.
func (r *Registry) RecordRequest(status string) {
	if r == nil {
		return
	}
	r.FetchRequests.WithLabelValues(status).Inc()
}

// RecordNodes adds n written nodes of a label.
func (r *Registry) RecordNodes(label string, n int) {
	if r == nil {
		return
	}
	r.NodesCreated.WithLabelValues(label).Add(float64(n))
}

// RecordEdges adds n derived edges of a relationship type.
func (r *Registry) RecordEdges(relType string, n int64) {
	if r == nil {
		return
	}
	r.EdgesDerived.WithLabelValues(relType).Add(float64(n))
}

// ObserveStage records the duration of a load stage.
func (r *Registry) ObserveStage(stage string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage, status(err)).Observe(d.Seconds())
}

// RecordRun records the outcome of a whole run.
func (r *Registry) RecordRun(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(status(err)).Inc()
	r.LastRunDuration.Set(d.Seconds())
	if err != nil {
		r.LastRunSuccess.Set(0)
	} else {
		r.LastRunSuccess.Set(1)
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns an http.Handler that serves the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Mux serves /metrics and a liveness probe on /, wrapped in recovery,
// request logging and tracing.
func (r *Registry) Mux(log *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return mid.Chain(mux, mid.Recover(log), mid.Logger(log), mid.OTel("vaarweggraph.metrics"))
}

// Serve starts an HTTP server on the given port serving /metrics.
func (r *Registry) Serve(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r.Mux(slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// ServeAsync starts the metrics server in a goroutine. Errors are logged.
func (r *Registry) ServeAsync(port int) {
	go func() {
		if err := r.Serve(port); err != nil {
			slog.Error("metrics server", "port", port, "error", err)
		}
	}()
}
