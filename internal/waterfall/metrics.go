package waterfall

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick outcomes reported by Metrics.
const (
	OutcomeRendered = "rendered"
	OutcomeSkipped  = "skipped"
	OutcomeDropped  = "dropped"
	OutcomeFailed   = "failed"
)

// Metrics holds the Prometheus collectors updated by a Waterfall.
type Metrics struct {
	ticks        *prometheus.CounterVec // Ticks by mode and outcome
	tickDuration prometheus.Histogram   // Time spent rendering a tick
	rangeBound   *prometheus.GaugeVec   // Current normalization bounds (by bound: min, max, delta)
}

// NewMetrics creates the waterfall collectors and registers them with reg.
// A nil reg leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waterfall_ticks_total",
				Help: "Total waterfall refresh ticks by render mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		tickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "waterfall_tick_duration_seconds",
				Help:    "Time spent rendering a waterfall row",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		rangeBound: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "waterfall_range_bound",
				Help: "Current waterfall normalization bounds",
			},
			[]string{"bound"},
		),
	}
}

func (m *Metrics) observeTick(mode Mode, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(mode.String(), outcome).Inc()
	if outcome == OutcomeRendered {
		m.tickDuration.Observe(time.Since(started).Seconds())
	}
}

func (m *Metrics) observeRange(s RangeState) {
	if m == nil {
		return
	}
	m.rangeBound.WithLabelValues("min").Set(s.Min)
	m.rangeBound.WithLabelValues("max").Set(s.Max)
	m.rangeBound.WithLabelValues("delta").Set(s.MaxDelta)
}
