package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(embedCallsLatencyMs, embedTexts, completionStreamsTotal, retrievalLatencyMs)
}

var embedCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "embed_calls_latency_ms",
		Help:    "Embedding batch call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
	[]string{"model", "success"},
)

var embedTexts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "embed_texts_total",
		Help: "Texts sent to the embedding service per model.",
	},
	[]string{"model"},
)

var completionStreamsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "completion_streams_total",
		Help: "Streamed completions by terminal state (completed/errored).",
	},
	[]string{"state"},
)

var retrievalLatencyMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "retrieval_latency_ms",
		Help:    "Retrieval pipeline latency (query embed + vector search).",
		Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
	},
)

func ObserveEmbedCall(model string, texts int, latencyMs int, success bool) {
	embedCallsLatencyMs.WithLabelValues(norm(model), strconv.FormatBool(success)).Observe(float64(latencyMs))
	if success {
		embedTexts.WithLabelValues(norm(model)).Add(float64(texts))
	}
}

func IncCompletionStream(state string) {
	completionStreamsTotal.WithLabelValues(norm(state)).Inc()
}

func ObserveRetrieval(latencyMs int) {
	retrievalLatencyMs.Observe(float64(latencyMs))
}
