package inference

import "github.com/prometheus/client_golang/prometheus"

var (
	loadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "libreplexity",
			Subsystem: "inference",
			Name:      "load_duration_seconds",
			Help:      "Duration of model loads in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"model", "outcome"},
	)

	generateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "libreplexity",
			Subsystem: "inference",
			Name:      "generate_duration_seconds",
			Help:      "Duration of summary generations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model", "outcome"},
	)

	tokensStreamed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libreplexity",
			Subsystem: "inference",
			Name:      "tokens_streamed_total",
			Help:      "Content chunks streamed from the engine",
		},
		[]string{"model"},
	)

	lockWaiters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "libreplexity",
			Subsystem: "inference",
			Name:      "lock_waiters",
			Help:      "Callers waiting for the engine lock",
		},
	)
)

func init() {
	prometheus.MustRegister(loadDuration, generateDuration, tokensStreamed, lockWaiters)
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
