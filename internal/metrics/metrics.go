// Package metrics provides Prometheus metrics for the generation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProductsTotal counts processed products by outcome.
	ProductsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkseo",
			Name:      "products_total",
			Help:      "Total number of products processed",
		},
		[]string{"status"},
	)

	// BatchesTotal counts finished batches by outcome.
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkseo",
			Name:      "batches_total",
			Help:      "Total number of batches finished",
		},
		[]string{"status"},
	)

	// JobsTotal counts jobs reaching a terminal state.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkseo",
			Name:      "jobs_total",
			Help:      "Total number of jobs finished",
		},
		[]string{"status"},
	)

	// GenerationDuration measures content generation calls.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bulkseo",
			Name:      "generation_duration_seconds",
			Help:      "Duration of content generation calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// BatchesInFlight tracks batches currently running.
	BatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bulkseo",
			Name:      "batches_in_flight",
			Help:      "Number of batches currently being processed",
		},
	)

	// ErrorsTotal counts errors by operation.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkseo",
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"operation", "error_type"},
	)
)

// RecordProduct records a product outcome.
func RecordProduct(status string) {
	ProductsTotal.WithLabelValues(status).Inc()
}

// RecordBatch records a batch outcome.
func RecordBatch(status string) {
	BatchesTotal.WithLabelValues(status).Inc()
}

// RecordJob records a job reaching a terminal state.
func RecordJob(status string) {
	JobsTotal.WithLabelValues(status).Inc()
}

// RecordGeneration records a generation call.
func RecordGeneration(provider, status string, duration float64) {
	GenerationDuration.WithLabelValues(provider, status).Observe(duration)
}

// RecordError records an error.
func RecordError(operation, errorType string) {
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}
