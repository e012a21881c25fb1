package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(documentsProcessedTotal, documentRetriesTotal, ingestDurationSeconds, ingestChunks)
}

var documentsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "documents_processed_total",
		Help: "Total number of document jobs finished, labeled by outcome.",
	},
	[]string{"outcome"}, // 'completed', 'retried', 'failed'
)

var documentRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "document_retries_total",
		Help: "Total number of document jobs re-queued after a failure.",
	},
)

var ingestDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ingest_duration_seconds",
		Help:    "End-to-end ingestion duration per document.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	},
)

var ingestChunks = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ingest_chunks",
		Help:    "Chunks indexed per completed document.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	},
)

func IncDocumentProcessed(outcome string) {
	documentsProcessedTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncDocumentRetry() { documentRetriesTotal.Inc() }

func ObserveIngest(seconds float64, chunks int) {
	ingestDurationSeconds.Observe(seconds)
	ingestChunks.Observe(float64(chunks))
}
