package matrix

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus collectors. NewMetrics(nil) returns
// working but unregistered collectors.
type Metrics struct {
	SeedsCompleted      prometheus.Counter
	EdgeRelaxations     prometheus.Counter
	ShortcutRelaxations prometheus.Counter
	MergedImprovements  prometheus.Counter
	SeedDuration        prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg. Registering twice on
// the same registry panics, so callers share one Metrics per registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		SeedsCompleted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pathmatrix_seeds_completed_total",
			Help: "Origins whose rows have been published",
		}),
		EdgeRelaxations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pathmatrix_edge_relaxations_total",
			Help: "Single-edge path extensions tried",
		}),
		ShortcutRelaxations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pathmatrix_shortcut_relaxations_total",
			Help: "Concatenations with a finished origin's path tried",
		}),
		MergedImprovements: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pathmatrix_merged_improvements_total",
			Help: "Merged store slots overwritten by a better path",
		}),
		SeedDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "pathmatrix_seed_duration_seconds",
			Help:    "Time to search and publish one origin",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}
