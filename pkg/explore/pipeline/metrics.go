package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	runs          prometheus.Counter
	cacheHits     prometheus.Counter
	cancellations prometheus.Counter
	emissions     *prometheus.CounterVec
	activeStreams prometheus.Gauge
}

// NewMetrics registers the pipeline metrics with reg. A nil registerer
// yields working but unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "explore",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of query runs started.",
		}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "explore",
			Subsystem: "pipeline",
			Name:      "cache_hits_total",
			Help:      "Total number of runs served from the pane result cache.",
		}),
		cancellations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "explore",
			Subsystem: "pipeline",
			Name:      "cancellations_total",
			Help:      "Total number of user cancellations.",
		}),
		emissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "explore",
			Subsystem: "pipeline",
			Name:      "emissions_total",
			Help:      "Total number of stream emissions applied to panes, by loading state.",
		}, []string{"state"}),
		activeStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "explore",
			Subsystem: "pipeline",
			Name:      "active_streams",
			Help:      "Number of main query streams currently being consumed.",
		}),
	}
}
