// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// GenerationRequests counts calls to the generation endpoint by outcome.
	GenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefdesk",
		Name:      "generation_requests_total",
		Help:      "Briefing generation requests by outcome.",
	}, []string{"outcome"})

	// GenerationDuration observes generation latency in seconds.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "briefdesk",
		Name:      "generation_duration_seconds",
		Help:      "Latency of the briefing generation endpoint.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	// StoreOperations counts data store operations by op and outcome.
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefdesk",
		Name:      "store_operations_total",
		Help:      "Briefing store operations by operation and outcome.",
	}, []string{"op", "outcome"})

	// PDFExports counts rendered PDF documents.
	PDFExports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "briefdesk",
		Name:      "pdf_exports_total",
		Help:      "Briefing PDF exports.",
	})
)

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
