package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store operation outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeFailure  = "failure"
	OutcomeInvalid  = "invalid"
	OutcomeClosed   = "closed"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskdesk_store_operations_total",
			Help: "Document store operations by outcome",
		},
		[]string{"operation", "collection", "outcome"},
	)

	// storeAttemptsTotal counts attempts, so attempts minus operations is the number of retries.
	storeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskdesk_store_attempts_total",
			Help: "Attempts made against the document store, retries included",
		},
		[]string{"operation", "collection"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskdesk_store_operation_duration_seconds",
			Help:    "Document store operation duration in seconds, backoff waits included",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "collection"},
	)
)

// RecordStoreOperation records one logical store operation.
func RecordStoreOperation(operation, collection, outcome string, attempts int, duration time.Duration) {
	storeOperationsTotal.WithLabelValues(operation, collection, outcome).Inc()
	if attempts > 0 {
		storeAttemptsTotal.WithLabelValues(operation, collection).Add(float64(attempts))
	}
	storeOperationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
}
