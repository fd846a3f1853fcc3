package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the process-wide counters and histograms the orchestrator
// updates on every ingest and query. There is no OpenTelemetry dependency
// anywhere in this module, so instrumentation is plain Prometheus client
// metrics rather than spans.
type Metrics struct {
	queriesTotal      *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
	chunksIngested    *prometheus.CounterVec
	ingestionDuration prometheus.Histogram
}

// NewMetrics registers the orchestrator's metrics against reg. A nil reg
// registers against prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindweave_queries_total",
			Help: "Total queries handled, labeled by final strategy and whether the query errored.",
		}, []string{"strategy", "errored"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindweave_query_duration_seconds",
			Help:    "Query pipeline duration in seconds, labeled by final strategy.",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		chunksIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindweave_chunks_ingested_total",
			Help: "Total chunks committed to the store, labeled by modality.",
		}, []string{"modality"}),
		ingestionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mindweave_ingestion_duration_seconds",
			Help:    "Time to process and embed one ingested file.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.queriesTotal, m.queryDuration, m.chunksIngested, m.ingestionDuration)
	return m
}
