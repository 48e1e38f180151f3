package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/newsie/rag"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsie_chat_turns_total",
		Help: "Answered chat turns by outcome.",
	}, []string{"outcome"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsie_http_requests_total",
		Help: "HTTP requests by method and status.",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsie_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// turnOutcome classifies an orchestrator reply by its fixed fallback
// strings. Anything else is a grounded answer.
func turnOutcome(answer string) string {
	switch answer {
	case rag.EmbeddingFailedMessage:
		return "embedding_failed"
	case rag.NoResultsMessage:
		return "no_results"
	case rag.AnswerFailedMessage:
		return "answer_failed"
	default:
		return "answered"
	}
}
