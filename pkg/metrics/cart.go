package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart mutations and persistence outcomes. A nil
// *CartMetrics is a valid no-op recorder.
type CartMetrics struct {
	mutations       *prometheus.CounterVec
	persistFailures prometheus.Counter
	persistDuration prometheus.Histogram
	lineItems       prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations applied in memory.",
	}, []string{"op"})
	persistFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Cart snapshot writes that failed.",
	})
	persistDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_persist_duration_seconds",
		Help:    "Duration of cart snapshot writes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	lineItems := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_line_items",
		Help: "Line items currently held in the cart.",
	})
	reg.MustRegister(mutations, persistFailures, persistDuration, lineItems)
	return &CartMetrics{
		mutations:       mutations,
		persistFailures: persistFailures,
		persistDuration: persistDuration,
		lineItems:       lineItems,
	}
}

// IncMutation counts one applied mutation of the named kind.
func (c *CartMetrics) IncMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObservePersist records a snapshot write and whether it failed.
func (c *CartMetrics) ObservePersist(duration time.Duration, err error) {
	if c == nil || c.persistDuration == nil {
		return
	}
	c.persistDuration.Observe(duration.Seconds())
	if err != nil {
		c.persistFailures.Inc()
	}
}

// SetLineItems publishes the current cart length.
func (c *CartMetrics) SetLineItems(n int) {
	if c == nil || c.lineItems == nil {
		return
	}
	c.lineItems.Set(float64(n))
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
