package jobs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/babelpdf/internal/model"
)

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "babelpdf_translations_total",
			Help: "Total number of translation jobs driven to a terminal status.",
		},
		[]string{"status"},
	)

	translationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "babelpdf_translation_duration_seconds",
			Help:    "Wall-clock duration of translation jobs from start to terminal status, in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "babelpdf_active_jobs",
			Help: "Number of translation jobs currently being driven.",
		},
	)
)

func init() {
	prometheus.MustRegister(translationsTotal)
	prometheus.MustRegister(translationDuration)
	prometheus.MustRegister(activeJobs)

	// Pre-initialize counter label combinations so they appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	translationsTotal.WithLabelValues(model.StatusCompleted)
	translationsTotal.WithLabelValues(model.StatusFailed)
}
