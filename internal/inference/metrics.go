package inference

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// genLatency records wall-clock time of Generate calls by outcome
	// ("ok" or a failure Kind).
	genLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "inference_request_duration_seconds",
			Help: "Duration of answer generation calls in seconds.",
			// generation is slow; extend well past the HTTP defaults
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	// genFailures counts failed Generate calls by kind.
	genFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_failures_total",
			Help: "Total number of failed answer generation calls.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(genLatency, genFailures)
}
