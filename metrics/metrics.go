package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ModelCallsTotal counts outbound model call attempts by outcome
	// (success, http_error, no_content, transport_error, canceled).
	ModelCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaningcards",
		Subsystem: "gateway",
		Name:      "model_calls_total",
		Help:      "Total number of model call attempts, labeled by outcome.",
	}, []string{"outcome"})

	// ModelCallDurationSeconds is the wall time of a single model call attempt.
	ModelCallDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cleaningcards",
		Subsystem: "gateway",
		Name:      "model_call_duration_seconds",
		Help:      "Wall time of a single model call attempt.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	// AnalysesTotal counts analysis requests by mode and result.
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaningcards",
		Subsystem: "analyzer",
		Name:      "analyses_total",
		Help:      "Total number of room photo analyses, labeled by mode and result.",
	}, []string{"mode", "result"})

	// RepairCallsTotal counts one-shot JSON repair calls to the model.
	RepairCallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cleaningcards",
		Subsystem: "analyzer",
		Name:      "repair_calls_total",
		Help:      "Total number of JSON repair calls issued after a parse failure.",
	})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ModelCallsTotal,
			ModelCallDurationSeconds,
			AnalysesTotal,
			RepairCallsTotal,
		)
	})
}
