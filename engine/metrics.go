package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	fetchSerial   = "serial"
	fetchParallel = "parallel"
)

// Metrics are the Prometheus collectors of the engine. A nil *Metrics
// records nothing.
type Metrics struct {
	resolutions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	evictions   prometheus.Counter
	fetches     *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depgraph_resolutions_total",
				Help: "Number of resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depgraph_conflicts_total",
				Help: "Number of conflicts detected by kind.",
			},
			[]string{"kind"},
		),
		evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "depgraph_evictions_total",
				Help: "Number of components evicted by conflict resolution.",
			},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depgraph_metadata_fetches_total",
				Help: "Number of component metadata fetches by mode.",
			},
			[]string{"mode"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "depgraph_resolution_duration_seconds",
				Help:    "Time taken to resolve a graph.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	for _, c := range []prometheus.Collector{m.resolutions, m.conflicts, m.evictions, m.fetches, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) resolved(failed bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) conflict(kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) evicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.evictions.Add(float64(n))
}

func (m *Metrics) fetched(mode string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(mode).Inc()
}
