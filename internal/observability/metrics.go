package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// flood recommendation engine.
type Metrics struct {
	RunsTotal    prometheus.Counter
	RunsFailed   prometheus.Counter
	RunDuration  prometheus.Histogram
	LastRunEpoch prometheus.Gauge

	PointsEvaluated   prometheus.Counter
	PointsDegraded    prometheus.Counter     // per-point anomalies that fell back to "no data"
	EventsRecommended *prometheus.CounterVec // labels: phenomenon, significance
	HazardsPublished  prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunsFailed,
		m.RunDuration,
		m.LastRunEpoch,
		m.PointsEvaluated,
		m.PointsDegraded,
		m.EventsRecommended,
		m.HazardsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_recommender",
			Name:      "runs_total",
			Help:      "Total recommendation runs attempted.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_recommender",
			Name:      "runs_failed_total",
			Help:      "Runs aborted by a data-access failure.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_recommender",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete recommendation pass.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastRunEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_recommender",
			Name:      "last_successful_run_epoch_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		PointsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_recommender",
			Name:      "points_evaluated_total",
			Help:      "Forecast points evaluated across all runs.",
		}),
		PointsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_recommender",
			Name:      "points_degraded_total",
			Help:      "Points whose time-series load failed and degraded to no data.",
		}),
		EventsRecommended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_recommender",
			Name:      "events_recommended_total",
			Help:      "Recommended hazard events by phenomenon and significance.",
		}, []string{"phenomenon", "significance"}),
		HazardsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_recommender",
			Name:      "hazards_published_total",
			Help:      "Hazard events written to the staging topic.",
		}),
	}
}
