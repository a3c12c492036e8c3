// Package metrics holds the Prometheus collectors and the OpenTelemetry
// tracer shared by the ingestion and query services.
//
// Collectors are registered on a private registry rather than the global
// default, so tests and embedded uses get a clean set.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Prometheus metrics
var (
	IngestDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragmem_ingest_documents_total",
			Help: "Documents processed by the ingestion pipeline, by final status",
		},
		[]string{"status"},
	)
	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragmem_ingest_duration_seconds",
			Help:    "Wall time to ingest one document",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
	)
	EmbeddingRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ragmem_embedding_retries_total",
			Help: "Embedding batch attempts that were retried after a transient failure",
		},
	)
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragmem_search_duration_seconds",
			Help:    "Time to embed a question and retrieve matching chunks",
			Buckets: prometheus.DefBuckets,
		},
	)
	Answers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragmem_answers_total",
			Help: "Answers produced, by outcome (answered, not_found, error)",
		},
		[]string{"outcome"},
	)
	IndexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragmem_index_entries",
			Help: "Vectors held by the index",
		},
	)
)

// Answer outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var tracer = otel.Tracer("github.com/custodia-labs/ragmem")

func init() {
	Registry.MustRegister(
		IngestDocuments, IngestDuration, EmbeddingRetries,
		SearchDuration, Answers, IndexEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ObserveSince records the seconds elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// StartSpan starts a span named name with string attributes given as key/value pairs.
// Without an installed SDK the span is a no-op.
func StartSpan(ctx context.Context, name string, kv ...string) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
