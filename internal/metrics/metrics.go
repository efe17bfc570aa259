// Package metrics exposes Prometheus instrumentation for the serving
// pipeline: HTTP traffic, answer latency and degradation, retrieval
// yield, and ingestion volume.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lexquery"

// Collector owns the metric families and the registry they live in.
// Each Collector carries its own registry so instances never collide.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	answersTotal   *prometheus.CounterVec
	answerDuration prometheus.Histogram

	retrievalPassages prometheus.Histogram

	ingestTotal  *prometheus.CounterVec
	ingestChunks prometheus.Histogram
}

// NewCollector creates a collector with a fresh registry, runtime
// collectors included.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served, by route and status class.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		answersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "answers_total",
				Help:      "Questions answered, by outcome (answered or degraded).",
			},
			[]string{"outcome"},
		),
		answerDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "answer_duration_seconds",
				Help:      "Full ask pipeline duration in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		retrievalPassages: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_passages",
				Help:      "Passages cited per answered question.",
				Buckets:   prometheus.LinearBuckets(0, 1, 11),
			},
		),

		ingestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_documents_total",
				Help:      "Documents ingested, by result.",
			},
			[]string{"status"},
		),
		ingestChunks: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_chunks",
				Help:      "Chunks produced per ingested document.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAnswer records one completed ask pipeline run and how many
// passages backed it.
func (c *Collector) RecordAnswer(degraded bool, sources int, duration time.Duration) {
	outcome := "answered"
	if degraded {
		outcome = "degraded"
	}
	c.answersTotal.WithLabelValues(outcome).Inc()
	c.answerDuration.Observe(duration.Seconds())
	c.retrievalPassages.Observe(float64(sources))
}

// RecordIngest records one ingestion attempt.
func (c *Collector) RecordIngest(ok bool, chunks int) {
	status := "ok"
	if !ok {
		status = "error"
	}
	c.ingestTotal.WithLabelValues(status).Inc()
	if ok {
		c.ingestChunks.Observe(float64(chunks))
	}
}

// statusClass folds HTTP status codes into their class so label
// cardinality stays fixed.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
