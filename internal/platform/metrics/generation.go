package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var generationLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_latency_seconds",
		Help:      "LLM generation latency including retries, by operation and success.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	},
	[]string{"operation", "success"},
)

func init() {
	register(generationLatency)
}

// ObserveGeneration records one generation call.
func ObserveGeneration(operation string, success bool, d time.Duration) {
	generationLatency.WithLabelValues(norm(operation), strconv.FormatBool(success)).Observe(d.Seconds())
}
