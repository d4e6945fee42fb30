package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cropradar/internal/cache"
	"cropradar/internal/outbreak"
	"cropradar/internal/types"
)

var (
	_ outbreak.Metrics     = (*Prometheus)(nil)
	_ cache.LookupRecorder = (*Prometheus)(nil)
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Prometheus holds the collectors scraped from /metrics. Each instance owns
// its registry so tests can build as many as they need.
type Prometheus struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ReportsSubmitted *prometheus.CounterVec
	RadarCells       *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
}

// NewPrometheus registers all collectors under namespace, lower-cased.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	namespace = strings.ToLower(namespace)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern",
			Buckets:   latencyBuckets,
		}, []string{"method", "route"}),
		ReportsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_submitted_total",
			Help:      "Accepted outbreak reports by source and acceptance status",
		}, []string{"source", "status"}),
		RadarCells: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "radar_cells_total",
			Help:      "Radar cells returned by crop and severity band",
		}, []string{"crop", "severity"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baseline_cache_lookups_total",
			Help:      "Baseline cache lookups by backend and result",
		}, []string{"backend", "result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry for additional collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// RecordRequest records one served HTTP request.
func (p *Prometheus) RecordRequest(method, endpoint, status string, duration time.Duration) {
	p.RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	p.RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSubmission counts one accepted report.
func (p *Prometheus) RecordSubmission(_ context.Context, source types.ReportSource, status types.ReportStatus) {
	p.ReportsSubmitted.WithLabelValues(string(source), string(status)).Inc()
}

// RecordRadar adds the per-severity cell counts of one radar response.
func (p *Prometheus) RecordRadar(_ context.Context, crop types.Crop, bySeverity map[types.Severity]int) {
	for _, sev := range types.AllSeverities {
		p.RadarCells.WithLabelValues(string(crop), string(sev)).Add(float64(bySeverity[sev]))
	}
}

// RecordCacheLookup counts baseline cache hits and misses for backend.
func (p *Prometheus) RecordCacheLookup(_ context.Context, backend string, hits, misses int) {
	p.CacheLookups.WithLabelValues(backend, "hit").Add(float64(hits))
	p.CacheLookups.WithLabelValues(backend, "miss").Add(float64(misses))
}
