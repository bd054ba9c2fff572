// Package metrics exposes Prometheus collectors for the thumbnail service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "thumbnail"

// Cache tiers and lookup results used as label values.
const (
	TierOriginal = "original"
	TierDerived  = "derived"

	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultBypass = "bypass"
	ResultError  = "error"
)

// Collector groups the service metrics. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	cacheLookups    *prometheus.CounterVec
	builds          *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec
	buildsShared    prometheus.Counter
	storageRetries  *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	warmQueueDepth  prometheus.Gauge
}

// NewCollector registers the collectors on a fresh registry together with
// the Go and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),
		builds: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Derived image builds by status",
			},
			[]string{"status"},
		),
		buildDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Duration of derived image builds in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"status"},
		),
		buildsShared: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_shared_total",
				Help:      "Callers served by a build that was shared with other callers",
			},
		),
		storageRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "retries_total",
				Help:      "Retried storage operations by backend and operation",
			},
			[]string{"backend", "op"},
		),
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		),
		warmQueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "warm",
				Name:      "queue_depth",
				Help:      "Identifiers waiting in the warm-up queue",
			},
		),
	}
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CacheLookup counts one lookup on tier with result.
func (c *Collector) CacheLookup(tier, result string) {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues(tier, result).Inc()
}

// BuildObserved records one derived build.
func (c *Collector) BuildObserved(d time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.builds.WithLabelValues(status).Inc()
	c.buildDuration.WithLabelValues(status).Observe(d.Seconds())
}

// BuildShared counts a caller that reused another caller's build.
func (c *Collector) BuildShared() {
	if c == nil {
		return
	}
	c.buildsShared.Inc()
}

func (c *Collector) StorageRetry(backend, op string) {
	if c == nil {
		return
	}
	c.storageRetries.WithLabelValues(backend, op).Inc()
}

func (c *Collector) SetWarmQueueDepth(n int) {
	if c == nil {
		return
	}
	c.warmQueueDepth.Set(float64(n))
}

// WarmQueueDepth exposes the queue depth gauge.
func (c *Collector) WarmQueueDepth() prometheus.Gauge {
	return c.warmQueueDepth
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and durations labelled by the chi route
// pattern, so identifiers do not explode the label space.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		c.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
