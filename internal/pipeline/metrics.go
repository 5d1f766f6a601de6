package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libreplexity",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "libreplexity",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	pagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libreplexity",
			Subsystem: "pipeline",
			Name:      "pages_total",
			Help:      "Candidate pages by scrape/distill outcome",
		},
		[]string{"outcome"},
	)

	staleUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "libreplexity",
			Subsystem: "pipeline",
			Name:      "stale_updates_total",
			Help:      "Run updates dropped because a newer run had started",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, stageDuration, pagesTotal, staleUpdates)
}

func runOutcome(err error, cancelled bool) string {
	switch {
	case cancelled:
		return "cancelled"
	case err == nil:
		return "ok"
	case IsSearchFailure(err):
		return "search_failure"
	case IsNoContent(err):
		return "no_content"
	default:
		return "error"
	}
}
